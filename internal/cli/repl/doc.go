// Package repl provides the interactive shell of attendmesh-cli.
//
// Each input line is split into arguments (single and double quotes
// group words) and handed to an Executor, normally a fresh run of the CLI
// app. Built-ins: help, history, exit, quit.
package repl
