// Package errors provides structured, actionable error messages for the
// pageforge CLI and dev server.
//
// Domain packages return plain Go errors (router.RouteBuildError,
// module.BoundaryError, jsx.CompileError). Classify turns them into a
// coded *Error carrying a source location, surrounding lines and a hint:
//
//	err := errors.Classify(loadErr)
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR E300: Client module imports server module
//	//
//	//   pages/index.jsx:2
//	//
//	//       1 │ "use client";
//	//   →   2 │ import { save } from "./actions";
//	//       3 │
//	//
//	//   Hint: Call the server module from a server page and pass the result down as props.
//
// # Error Codes
//
//   - E120-E123: configuration
//   - E140-E147: CLI
//   - E200-E203: route build (malformed page file names)
//   - E300-E302: module graph and client/server boundary
//   - E400-E403: JSX compile
//   - E500-E501: cache and page execution
package errors
