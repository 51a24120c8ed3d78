//go:build !whisper

package doctor

// Microphone capture is optional; file transcription works without it.
func checkPortAudio() Result {
	return Result{Name: "portaudio", Pass: true, Detail: "not compiled in (record and mic commands disabled)"}
}
