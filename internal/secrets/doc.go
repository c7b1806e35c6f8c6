// Package secrets redacts credentials from text before it leaves the
// process, either to the model provider or into project memory.
package secrets
