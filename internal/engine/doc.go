// Package engine defines the contract between the table controller and a
// poker rules engine.
//
// A Game creates one State per hand. The controller never computes legality
// itself: every command is preceded by its matching Can* guard, and a command
// that fails after its guard reported it as legal is a contract violation.
package engine
