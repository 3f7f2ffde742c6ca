// Package types defines the versioned entity model (patients, care plans,
// contacts, tasks, outcomes), the Store contract, the query types, and the
// standard error types for the careledger storage system.
package types
