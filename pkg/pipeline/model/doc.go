// Package model provides the value types shared by the pipeline package and
// its observers: node run-states, stage kinds, node and run descriptions, and
// the observer hooks notified while a graph runs.
package model
