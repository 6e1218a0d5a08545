package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseJava(t *testing.T, source string) *ParseResult {
	t.Helper()
	p := New()
	t.Cleanup(p.Close)
	result, err := p.Parse([]byte(source), LangJava, "Test.java")
	require.NoError(t, err)
	return result
}

func TestHasJavaModifier(t *testing.T) {
	result := parseJava(t, `class A {
    public static void s() {}
    private void p() {}
    void plain() {}
}`)
	methods := FindNodesByType(result.Tree.RootNode(), result.Source, JavaMethodDecl)
	require.Len(t, methods, 3)

	assert.True(t, HasJavaModifier(methods[0], "static"))
	assert.True(t, HasJavaModifier(methods[0], "public"))
	assert.False(t, HasJavaModifier(methods[1], "static"))
	assert.True(t, HasJavaModifier(methods[1], "private"))
	assert.Nil(t, JavaModifiersOf(methods[2]))
	assert.False(t, HasJavaModifier(methods[2], "static"))
}

func TestJavaArgumentsSkipsComments(t *testing.T) {
	result := parseJava(t, `class A { void a() { b(1, /* two */ 2, "three"); } }`)
	calls := FindNodesByType(result.Tree.RootNode(), result.Source, JavaMethodInvocation)
	require.Len(t, calls, 1)

	args := JavaArguments(calls[0].ChildByFieldName("arguments"))
	require.Len(t, args, 3)
	assert.Equal(t, `"three"`, GetNodeText(args[2], result.Source))
}

func TestIsJavaAnonymousBody(t *testing.T) {
	result := parseJava(t, `class A {
    Runnable r = new Runnable() { public void run() {} };
}`)
	bodies := FindNodesByType(result.Tree.RootNode(), result.Source, JavaClassBody)
	require.Len(t, bodies, 2)

	assert.False(t, IsJavaAnonymousBody(bodies[0]), "class A body is named")
	assert.True(t, IsJavaAnonymousBody(bodies[1]), "new Runnable() {...} body is anonymous")
}

func TestJavaBodyMembersFlattensEnumDeclarations(t *testing.T) {
	result := parseJava(t, `enum Color {
    RED, GREEN;
    int shade() { return 1; }
}`)
	enums := FindNodesByType(result.Tree.RootNode(), result.Source, JavaEnumDecl)
	require.Len(t, enums, 1)

	var methods int
	for _, m := range JavaBodyMembers(enums[0].ChildByFieldName("body")) {
		if m.Type() == JavaMethodDecl {
			methods++
		}
	}
	assert.Equal(t, 1, methods)
}

func TestSameNodeAndContains(t *testing.T) {
	result := parseJava(t, `class A { void a() { b(); } }`)
	root := result.Tree.RootNode()
	calls := FindNodesByType(root, result.Source, JavaMethodInvocation)
	require.Len(t, calls, 1)
	again := FindNodesByType(root, result.Source, JavaMethodInvocation)

	assert.True(t, SameNode(calls[0], again[0]))
	assert.False(t, SameNode(calls[0], root))
	assert.True(t, Contains(root, calls[0]))
	assert.False(t, Contains(calls[0], root))
}
