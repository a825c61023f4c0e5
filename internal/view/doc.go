// Package view keeps the latest rendered state of every channel in memory.
package view
