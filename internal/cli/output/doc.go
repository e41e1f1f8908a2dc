// Package output formats minikv-cli results.
//
// The raw format prints values the way redis-cli does ("world", (nil), OK).
// The json and yaml formats emit the result structure for scripting.
package output
