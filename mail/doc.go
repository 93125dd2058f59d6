// Package mail renders the engine's outbound messages and provides an SMTP
// implementation of the mail delivery collaborator. The engine only ever
// sees a single Send(to, subject, htmlBody) capability.
package mail
