// Package notes turns a lecture transcript into structured study notes with a
// single chat-completion request.
package notes
