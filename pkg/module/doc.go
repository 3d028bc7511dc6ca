// Package module defines the build-unit model shared by every stage of a
// compilation: modules, the dependencies and blocks they discover while
// building, and the records a build produces.
//
// A Module is owned by exactly one stage at a time. It is handed to the
// build step, mutated in place while building, and finally moved into the
// module graph, which owns it from then on.
package module
