// Package cli implements gophauth-cli, a one-shot command line client:
//
//	gophauth-cli [flags] register [login]
//	gophauth-cli [flags] login [login]
//	gophauth-cli [flags] refresh
//	gophauth-cli [flags] revoke
//	gophauth-cli [flags] whoami
//
// Tokens obtained by login and refresh are kept in the local session
// database so the next invocation can use them. Passwords are read from the
// terminal without echo.
package cli
