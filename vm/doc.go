// Package vm implements the Kona guest runtime core: linked klasses,
// method descriptors, and the lazy, thread-safe resolution of each
// method into exactly one executable call target.
//
// A method resolves to one of three execution strategies: an intrinsic
// substitution from the context's substitution table, a bound native
// symbol located through mangled-name search, or an interpreted
// bytecode body. Resolution is double-checked under a per-method lock,
// initializes the declaring klass before linking (outside that lock),
// and shares call targets across proxy method views.
package vm
