package admin

import "github.com/voxdial/scheduler/internal/config"

// configPatch mirrors config.Patch with JSON tags matching config.Snapshot's
// snake_case field names, since config.Patch itself carries no json tags.
type configPatch struct {
	VADEnergyThreshold     *int    `json:"vad_energy_threshold"`
	VADSpeechConfirmFrames *int    `json:"vad_speech_confirm_frames"`
	VADSilenceGap          *int    `json:"vad_silence_gap"`
	BargeInEnergyThreshold *int    `json:"barge_in_energy_threshold"`
	BargeInConfirmFrames   *int    `json:"barge_in_confirm_frames"`
	BargeInEnabled         *bool   `json:"barge_in_enabled"`
	TTSVoice               *string `json:"tts_voice"`
	TTSEngine              *string `json:"tts_engine"`
}

func (p configPatch) toConfigPatch() config.Patch {
	return config.Patch{
		VADEnergyThreshold:     p.VADEnergyThreshold,
		VADSpeechConfirmFrames: p.VADSpeechConfirmFrames,
		VADSilenceGap:          p.VADSilenceGap,
		BargeInEnergyThreshold: p.BargeInEnergyThreshold,
		BargeInConfirmFrames:   p.BargeInConfirmFrames,
		BargeInEnabled:         p.BargeInEnabled,
		TTSVoice:               p.TTSVoice,
		TTSEngine:              p.TTSEngine,
	}
}
