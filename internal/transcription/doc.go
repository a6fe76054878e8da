// Package transcription wraps the speech-recognition model used to turn audio
// chunks into text. A Loader prepares a Model once per pipeline run; the model
// then transcribes chunk files one at a time with a fixed language.
//
// Backends: the whisper.cpp command line tool, the OpenAI transcription API,
// and a generic multipart HTTP endpoint.
package transcription
