// Package gatewayerr defines the sentinel error taxonomy shared across the
// gateway. WrapCall attaches call_id and stage context to any error, a
// sentinel or an underlying library error, so callers can classify
// failures with errors.Is/As. Of the sentinels below, only
// ErrASRStreamClosed (ASR worker) and ErrESLCommandFailed (ESL client) are
// returned by code in this module.
package gatewayerr

import (
	"errors"
	"fmt"
)

var (
	// ErrCallNotFound names the case of a call_id with no entry in the
	// CallRegistry (already torn down, or never registered).
	ErrCallNotFound = errors.New("gatewayerr: call not found")

	// ErrTemplateNotFound names the case of a template_id absent from
	// the Template Registry's static config.
	ErrTemplateNotFound = errors.New("gatewayerr: template not found")

	// ErrAudioNotFound names the case of no WAV file resolving for a
	// template_id, including its fallback.
	ErrAudioNotFound = errors.New("gatewayerr: audio file not found")

	// ErrASRStreamClosed is returned by the ASR worker when audio is
	// pushed after the stream has been torn down.
	ErrASRStreamClosed = errors.New("gatewayerr: asr stream closed")

	// ErrASRQueueFull names the case of the bounded ASR audio queue having
	// no room; Worker.Push drops the oldest chunk instead of returning it.
	ErrASRQueueFull = errors.New("gatewayerr: asr queue full")

	// ErrESLCommandFailed is returned when the softswitch replies with
	// -ERR to an ESL command.
	ErrESLCommandFailed = errors.New("gatewayerr: esl command failed")

	// ErrESLNotConnected names the case of a command issued while the
	// ESL command channel is down.
	ErrESLNotConnected = errors.New("gatewayerr: esl not connected")

	// ErrInvalidInitFrame names the case of an init-channel JSON frame
	// missing required fields or malformed.
	ErrInvalidInitFrame = errors.New("gatewayerr: invalid init frame")

	// ErrSessionLogWrite names the case of the session logger failing to
	// persist a transcript or summary record.
	ErrSessionLogWrite = errors.New("gatewayerr: session log write failed")
)

// CallError wraps a sentinel with the call_id and stage it occurred in, so
// logs and metrics can be filtered without parsing message strings.
type CallError struct {
	CallID string
	Stage  string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("gatewayerr: call=%s stage=%s: %v", e.CallID, e.Stage, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// WrapCall attaches call_id and stage context to a sentinel or underlying
// error for logging and errors.Is/As classification upstream.
func WrapCall(callID, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &CallError{CallID: callID, Stage: stage, Err: err}
}
