package wager

// Version is the diceroll release version.
const Version = "0.1.0"
