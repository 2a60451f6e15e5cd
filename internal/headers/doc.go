// Package headers parses the --header flag into the HTTP headers sent to the
// remote server, encrypting selected values with a shared secret.
package headers
