package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/thisifier/pkg/parser"
)

func index(t *testing.T, src string) *Index {
	t.Helper()
	p := parser.New()
	t.Cleanup(p.Close)

	result, err := p.Parse([]byte(src), parser.LangJava, "Test.java")
	require.NoError(t, err)
	t.Cleanup(result.Tree.Close)
	require.False(t, result.Tree.RootNode().HasError(), "fixture must parse cleanly")

	return BuildIndex(result.Tree.RootNode(), result.Source)
}

// verdict checks the nth (0-based) invocation of name.
func verdict(t *testing.T, src, name string, nth int) Verdict {
	t.Helper()
	ix := index(t, src)
	r := New(ix)
	seen := 0
	for _, site := range ix.CallSites() {
		if site.CalleeName != name {
			continue
		}
		if seen == nth {
			return r.Check(site)
		}
		seen++
	}
	t.Fatalf("no invocation #%d of %s", nth, name)
	return Verdict{}
}

const example = `public class Example {
    private int counter = 0;

    public void increment() { counter++; }
    public void decrement() { counter--; }
    public void reset() { counter = 0; }

    public void performOperations() {
        increment();
        decrement();
        reset();
    }

    public void performOperationsWithThis() {
        this.increment();
        this.decrement();
    }

    public static void staticMethod() {}

    public void callStaticMethod() {
        staticMethod();
    }
}
`

func TestSelfCallsAreEligible(t *testing.T) {
	for _, name := range []string{"increment", "decrement", "reset"} {
		v := verdict(t, example, name, 0)
		assert.True(t, v.Eligible(), "%s: %s", name, v)
		require.NotNil(t, v.Method)
		assert.Equal(t, "Example", v.Method.Owner.Name)
		assert.Equal(t, "Example", v.Site.Enclosing.Name)
	}
}

func TestQualifiedCallsAreNotEligible(t *testing.T) {
	v := verdict(t, example, "increment", 1)
	assert.Equal(t, ReasonQualified, v.Reason)
	assert.Equal(t, "this", v.Site.Qualifier)
}

func TestStaticTargetIsNotEligible(t *testing.T) {
	v := verdict(t, example, "staticMethod", 0)
	assert.Equal(t, ReasonStatic, v.Reason)
	require.NotNil(t, v.Method)
	assert.True(t, v.Method.Static)
}

func TestInheritedMethod(t *testing.T) {
	src := `class Base { void helper() {} }
class Derived extends Base {
    void run() { helper(); }
}`
	v := verdict(t, src, "helper", 0)
	assert.Equal(t, ReasonInherited, v.Reason)
	require.NotNil(t, v.Method)
	assert.Equal(t, "Base", v.Method.Owner.Name)
}

func TestOverrideMakesCallEligible(t *testing.T) {
	src := `class Base { void helper() {} }
class Derived extends Base {
    @Override void helper() {}
    void run() { helper(); }
}`
	v := verdict(t, src, "helper", 0)
	assert.True(t, v.Eligible(), v.String())
	assert.Equal(t, "Derived", v.Method.Owner.Name)
}

func TestPrivateMethodsAreNotInherited(t *testing.T) {
	src := `class Base { private void secret() {} }
class Derived extends Base {
    void run() { secret(); }
}`
	v := verdict(t, src, "secret", 0)
	assert.Equal(t, ReasonUnresolved, v.Reason)
}

func TestOuterTypeMethod(t *testing.T) {
	src := `class Outer {
    void log() {}
    class Inner {
        void run() { log(); }
    }
}`
	v := verdict(t, src, "log", 0)
	assert.Equal(t, ReasonOuterType, v.Reason)
	assert.Equal(t, "Inner", v.Site.Enclosing.Name)
	assert.Equal(t, "Outer", v.Method.Owner.Name)
}

func TestInnermostTypeWithNameWins(t *testing.T) {
	src := `class Outer {
    void log(String s) {}
    class Inner {
        void log() {}
        void run() { log("x"); }
    }
}`
	v := verdict(t, src, "log", 0)
	assert.Equal(t, ReasonUnresolved, v.Reason, "Outer.log is hidden by Inner.log")
}

func TestAnonymousClass(t *testing.T) {
	src := `class Timer {
    void tick() {}
    void start() {
        Runnable r = new Runnable() {
            public void run() { step(); tick(); }
            void step() {}
        };
    }
}`
	step := verdict(t, src, "step", 0)
	assert.True(t, step.Eligible(), step.String())
	assert.Equal(t, KindAnonymous, step.Site.Enclosing.Kind)
	assert.Equal(t, "Timer.$anon", step.Site.Enclosing.QualifiedName())

	tick := verdict(t, src, "tick", 0)
	assert.Equal(t, ReasonUnresolved, tick.Reason, "Runnable is not declared in the file")
}

func TestAnonymousArgumentsBelongToOuterType(t *testing.T) {
	src := `class Factory {
    int size() { return 1; }
    Object make() {
        return new java.util.ArrayList<String>(size()) {};
    }
}`
	v := verdict(t, src, "size", 0)
	assert.True(t, v.Eligible(), v.String())
	assert.Equal(t, "Factory", v.Site.Enclosing.Name)
}

func TestExternalSupertype(t *testing.T) {
	src := `class Worker extends Thread {
    void work() {}
    void go() { work(); start(); }
}`
	work := verdict(t, src, "work", 0)
	assert.True(t, work.Eligible(), work.String())

	start := verdict(t, src, "start", 0)
	assert.Equal(t, ReasonUnresolved, start.Reason)
}

func TestExternalSupertypeMayHideOverload(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		eligible bool
	}{
		{
			name: "variable argument",
			src: `class Foo extends com.acme.Bar {
    void log(Object o) {}
    void run(String name) { log(name); }
}`,
		},
		{
			name: "literal widened to the parameter",
			src: `class Foo extends com.acme.Bar {
    void log(Object o) {}
    void run() { log("x"); }
}`,
		},
		{
			name: "varargs with no arguments",
			src: `class Foo extends com.acme.Bar {
    void log(Object... parts) {}
    void run() { log(); }
}`,
		},
		{
			name: "no arguments",
			src: `class Foo extends com.acme.Bar {
    void log() {}
    void run() { log(); }
}`,
			eligible: true,
		},
		{
			name: "literals of the exact parameter types",
			src: `class Foo extends com.acme.Bar {
    void log(String s, int n) {}
    void run() { log("x", 1); }
}`,
			eligible: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := verdict(t, tt.src, "log", 0)
			if tt.eligible {
				assert.True(t, v.Eligible(), v.String())
				return
			}
			assert.Equal(t, ReasonAmbiguous, v.Reason, v.String())
		})
	}
}

func TestKnownSupertypeOverloadIsAmbiguous(t *testing.T) {
	src := `class Bar { void log(String s) {} }
class Foo extends Bar {
    void log(Object o) {}
    void run(String name) { log(name); }
}`
	v := verdict(t, src, "log", 0)
	assert.Equal(t, ReasonAmbiguous, v.Reason, v.String())
}

func TestStaticContexts(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"static method", `class A { void work() {} static void main() { work(); } }`},
		{"static initializer", `class A { void work() {} static { work(); } }`},
		{"static field", `class A { int work() { return 1; } static int x = work(); }`},
		{"explicit constructor", `class A { A(int x) {} A() { this(work()); } int work() { return 1; } }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := verdict(t, tt.src, "work", 0)
			assert.Equal(t, ReasonStaticContext, v.Reason)
		})
	}
}

func TestInstanceContexts(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"constructor", `class A { A() { work(); } void work() {} }`},
		{"instance initializer", `class A { { work(); } void work() {} }`},
		{"field initializer", `class A { int x = work(); int work() { return 1; } }`},
		{"lambda", `class A { Runnable r = () -> work(); void work() {} }`},
		{"local class in static method", `class A { static void m() { class L { void go() { work(); } void work() {} } } }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := verdict(t, tt.src, "work", 0)
			assert.True(t, v.Eligible(), v.String())
		})
	}
}

func TestOverloadSelection(t *testing.T) {
	src := `class Sink {
    void put(int x) {}
    void put(String s) {}
    void run(Object o) {
        put(1);
        put("x");
        put(o.hashCode());
        put();
    }
}`
	assert.True(t, verdict(t, src, "put", 0).Eligible())
	assert.True(t, verdict(t, src, "put", 1).Eligible())
	assert.Equal(t, ReasonAmbiguous, verdict(t, src, "put", 2).Reason)
	assert.Equal(t, ReasonUnresolved, verdict(t, src, "put", 3).Reason)
}

func TestVarargsOverloads(t *testing.T) {
	src := `class Log {
    void log(String first) {}
    void log(String first, Object... rest) {}
    void run() {
        log("a");
        log("a", 1, 2);
    }
}`
	fixed := verdict(t, src, "log", 0)
	require.True(t, fixed.Eligible(), fixed.String())
	assert.False(t, fixed.Method.Varargs)

	variable := verdict(t, src, "log", 1)
	require.True(t, variable.Eligible(), variable.String())
	assert.True(t, variable.Method.Varargs)
}

func TestObjectMethods(t *testing.T) {
	src := `class Plain { String show() { return toString(); } }`
	v := verdict(t, src, "toString", 0)
	assert.Equal(t, ReasonInherited, v.Reason)
	assert.True(t, v.Method.Owner.Builtin())
}

func TestRecordImplicitMembers(t *testing.T) {
	src := `record Point(int x, int y) {
    int twice() { return x() * 2; }
    String show() { return toString(); }
}`
	accessor := verdict(t, src, "x", 0)
	assert.True(t, accessor.Eligible(), accessor.String())
	assert.True(t, accessor.Method.Implicit)

	str := verdict(t, src, "toString", 0)
	assert.True(t, str.Eligible(), str.String())
}

func TestEnumMembers(t *testing.T) {
	src := `enum Color {
    RED, GREEN;
    Color next() { return values()[(ordinal() + 1) % values().length]; }
    boolean warm() { return isRed(); }
    boolean isRed() { return this == RED; }
}`
	assert.Equal(t, ReasonStatic, verdict(t, src, "values", 0).Reason)
	assert.Equal(t, ReasonInherited, verdict(t, src, "ordinal", 0).Reason)
	assert.True(t, verdict(t, src, "isRed", 0).Eligible())
}

func TestEnumConstantBody(t *testing.T) {
	src := `enum Op {
    PLUS(seed()) {
        int apply(int a, int b) { return combine(a, b); }
    };
    Op(int s) {}
    static int seed() { return 0; }
    int combine(int a, int b) { return a + b; }
    abstract int apply(int a, int b);
}`
	v := verdict(t, src, "combine", 0)
	assert.Equal(t, ReasonInherited, v.Reason)
	assert.Equal(t, "Op", v.Method.Owner.Name)

	assert.Equal(t, ReasonStatic, verdict(t, src, "seed", 0).Reason)
}

func TestInterfaceDefaultMethod(t *testing.T) {
	src := `interface Greeter {
    String name();
    default String greet() { return "hi " + name(); }
}`
	v := verdict(t, src, "name", 0)
	assert.True(t, v.Eligible(), v.String())
	assert.Equal(t, KindInterface, v.Site.Enclosing.Kind)
}

func TestLocalVariableDoesNotShadowMethod(t *testing.T) {
	src := `class Machine {
    void reset() {}
    void run() {
        Runnable reset = () -> {};
        reset.run();
        reset();
    }
}`
	assert.Equal(t, ReasonQualified, verdict(t, src, "run", 0).Reason)
	assert.True(t, verdict(t, src, "reset", 0).Eligible())
}

func TestSupertypeDeclaredAfterUse(t *testing.T) {
	src := `class Outer {
    class Child extends Parent {
        void run() { help(); }
    }
    class Parent { void help() {} }
}`
	v := verdict(t, src, "help", 0)
	assert.Equal(t, ReasonInherited, v.Reason)
	assert.Equal(t, "Outer.Parent", v.Method.Owner.QualifiedName())
}

func TestIsEligibleSelfCall(t *testing.T) {
	ix := index(t, example)
	sites := ix.CallSites()
	require.NotEmpty(t, sites)

	var eligible []string
	for _, site := range sites {
		if IsEligibleSelfCall(site, ix.root, ix.Source()) {
			eligible = append(eligible, site.CalleeName)
		}
	}
	assert.Equal(t, []string{"increment", "decrement", "reset"}, eligible)
}

func TestReasonDescribe(t *testing.T) {
	for _, r := range []Reason{ReasonEligible, ReasonQualified, ReasonNoEnclosingType, ReasonStaticContext,
		ReasonUnresolved, ReasonAmbiguous, ReasonStatic, ReasonInherited, ReasonOuterType} {
		assert.NotEqual(t, string(r), r.Describe())
	}
}
