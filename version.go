package dyntools

// Version is the module version reported to clients by default.
const Version = "0.1.0"
