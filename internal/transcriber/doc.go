// Package transcriber turns uploaded audio clips into text.
//
// Live stages each clip in a uniquely named temp file, uploads it through a
// capability.SpeechToText, and deletes the file whatever the outcome.
// Failures are reported as *Error wrapping ErrTranscriptionFailed; they are
// never replaced with placeholder text. Fallback, used when no speech-to-text
// credential is configured, returns MockTranscription. Both variants reject
// empty clips with ErrEmptyAudio before doing anything else.
package transcriber
