// Package speech содержит адаптеры внешних речевых API: распознавание
// (Google STT, OpenAI Whisper), синтез (Google TTS) и оценку
// длительности речи для тарификации.
package speech

import "strings"

// EstimateSpeechDuration оценивает длительность речи по тексту:
// количество слов / 2.5 слова в секунду, округление вверх, минимум 1.
// Используется как суррогат тарификации, когда аудиобуфера ещё нет.
func EstimateSpeechDuration(text string) int {
	words := len(strings.Fields(text))
	seconds := (2*words + 4) / 5
	if seconds < 1 {
		return 1
	}
	return seconds
}

const (
	wavHeaderSize   = 44
	bytesPerSample  = 2
	sampleRateHertz = 16000
)

// WAVDuration возвращает длительность записи WAV PCM 16 кГц в секундах
// по размеру буфера. Точный источник для тарификации, когда запись есть.
func WAVDuration(buf []byte) int {
	if len(buf) <= wavHeaderSize {
		return 0
	}
	samples := (len(buf) - wavHeaderSize) / bytesPerSample
	return (samples + sampleRateHertz - 1) / sampleRateHertz
}
