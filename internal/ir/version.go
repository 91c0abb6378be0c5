package ir

// ToolVersion is the pinsync version reported by --version.
const ToolVersion = "0.1.0"
