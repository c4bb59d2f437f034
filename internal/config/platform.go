package config

import "runtime"

// defaultInputFormat picks the ffmpeg capture backend for the host OS.
func defaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

func defaultInputDevice() string {
	switch runtime.GOOS {
	case "darwin":
		return ":default"
	case "windows":
		return "audio=default"
	default:
		return "default"
	}
}
