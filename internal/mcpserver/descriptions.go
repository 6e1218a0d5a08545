package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeList() string {
	return `Lists unqualified Java method calls that can be prefixed with "this." without changing behavior.

USE WHEN:
- Checking whether a file or project follows an explicit-this style
- Previewing what qualify_self_calls would change
- Reviewing a pull request for unqualified self-calls (set changed=true)

INTERPRETING RESULTS:
- Each finding is a call whose target is an instance method declared by the
  innermost enclosing type of the call
- Calls to static methods, inherited methods, methods of outer classes and
  calls inside static contexts are never listed
- An empty list means the scope is already qualified

RETURNS:
- findings: path, position (line:column), callee, target method
- eligible: number of findings`
}

func describeQualify() string {
	return `Inserts "this." before every eligible self-call, either in files on disk or in a buffer passed as content.

USE WHEN:
- Applying the explicit-this style to files or a whole project
- Rewriting an unsaved editor buffer (pass content and path)
- Limiting a rewrite to a selection (scope "12:1-20:1") or the call under
  the cursor (scope "14:9")

INTERPRETING RESULTS:
- applied: calls that were qualified
- skipped: calls that changed or became invalid before they could be edited
- A file whose write was refused (read-only, locked) is reported with an
  error and left untouched
- Running the tool twice changes nothing the second time

RETURNS:
- For content: the rewritten source, a unified diff and the outcome per call
- For paths: a per-file table, a summary and, with dry_run, a unified diff`
}

func describeExplain() string {
	return `Explains, for every method call in scope, whether it can be qualified with "this." and why not.

USE WHEN:
- A call you expected to be qualified was left alone
- Auditing how calls in a file resolve to their declarations

INTERPRETING RESULTS:
- eligible: instance method declared by the enclosing type
- already-qualified: the call has an explicit receiver
- static-context / static-method: there is no instance or the target is static
- inherited / outer-type: the target is declared by a supertype or an
  enclosing class, so "this." would change or break the call
- unresolved / ambiguous: the file alone does not determine the target

RETURNS:
- findings: path, position, callee, target, reason, detail`
}
