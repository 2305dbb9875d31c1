// Package core holds the credential lifecycle of the commerce client: the
// owned OAuth token pair, its refresh exchange, configuration and the error
// envelope shared by every other package. Transport, webhook and storage
// adapters depend on core; core depends on none of them.
package core
