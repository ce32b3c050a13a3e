// Command blinkguard runs the blink monitor platform: it receives eye-blink
// scores from the renderer or the landmark sidecar, drives the overlay
// reminder and serves the control API.
package main

func main() {
	Execute()
}
