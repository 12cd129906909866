package types

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Locales lists the supported user-facing languages; the first one is the default.
var Locales = []language.Tag{language.BrazilianPortuguese, language.English}

var localeMatcher = language.NewMatcher(Locales)

// Message keys double as the English text.
const (
	msgInvalidInput     = "Missing or invalid YouTube URL."
	msgBlocked          = "YouTube detected unusual traffic. Wait a few minutes and try again, or switch networks (for example a VPN)."
	msgNotFound         = "Video unavailable, private, removed, or not available in your region."
	msgRestricted       = "Video is age restricted or requires sign-in and cannot be downloaded."
	msgNoFormats        = "No format available for download."
	msgUpstreamTransfer = "The YouTube URL expired or was blocked. Fetch the video information again."
	msgTranscode        = "Video processing failed. Try a different format or a lower quality."
	msgTimeout          = "The request timed out. Check your connection and try again."
	msgInternal         = "Failed to process the YouTube video. Try again in a few minutes."

	// MsgStreamFailed formats a per-stream transfer failure: stream name, attempts, last error.
	MsgStreamFailed = "Failed to download %s after %d attempts: %s"
	// MsgStreamVideo and MsgStreamAudio name the two mux inputs.
	MsgStreamVideo = "video"
	MsgStreamAudio = "audio"

	MsgJobNotFound = "Job not found or already expired."
	MsgJobNotReady = "The job has not finished yet."
)

func init() {
	pt := language.BrazilianPortuguese
	for key, text := range map[string]string{
		msgInvalidInput:     "URL do YouTube ausente ou inválida.",
		msgBlocked:          "YouTube detectou atividade suspeita. Aguarde alguns minutos e tente novamente, ou use uma VPN.",
		msgNotFound:         "Vídeo indisponível, privado, removido ou bloqueado na sua região.",
		msgRestricted:       "Vídeo com restrição de idade ou que exige login. Não é possível baixar.",
		msgNoFormats:        "Nenhum formato disponível para download.",
		msgUpstreamTransfer: "URL do YouTube expirada ou bloqueada. Tente obter as informações do vídeo novamente.",
		msgTranscode:        "Erro no processamento de vídeo. Tente um formato diferente ou com qualidade menor.",
		msgTimeout:          "Tempo esgotado. Verifique sua conexão com a internet e tente novamente.",
		msgInternal:         "Erro ao processar o vídeo do YouTube. Tente novamente em alguns minutos.",
		MsgStreamFailed:     "Falha ao baixar %s após %d tentativas: %s",
		MsgStreamVideo:      "vídeo",
		MsgStreamAudio:      "áudio",
		MsgJobNotFound:      "Tarefa não encontrada ou já expirada.",
		MsgJobNotReady:      "A tarefa ainda não terminou.",
	} {
		_ = message.SetString(pt, key, text)
		_ = message.SetString(language.English, key, key)
	}
}

// MatchLocale picks the supported locale closest to an Accept-Language header value.
func MatchLocale(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Locales[0]
	}
	_, idx, _ := localeMatcher.Match(tags...)
	return Locales[idx]
}

// ParseLocale resolves a configured locale name, falling back to the default.
func ParseLocale(name string) language.Tag {
	if name == "" {
		return Locales[0]
	}
	tag, err := language.Parse(name)
	if err != nil {
		return Locales[0]
	}
	_, idx, _ := localeMatcher.Match(tag)
	return Locales[idx]
}

// Localize renders a message key in the given locale.
func Localize(tag language.Tag, key string, args ...any) string {
	return message.NewPrinter(tag).Sprintf(key, args...)
}

// Message returns the localized, user-facing description of a failure kind.
func Message(kind Kind, tag language.Tag) string {
	key := msgInternal
	switch kind {
	case KindInvalidInput:
		key = msgInvalidInput
	case KindBlocked:
		key = msgBlocked
	case KindNotFound:
		key = msgNotFound
	case KindRestricted:
		key = msgRestricted
	case KindNoFormatsAvailable:
		key = msgNoFormats
	case KindUpstreamTransfer:
		key = msgUpstreamTransfer
	case KindTranscode:
		key = msgTranscode
	case KindTimeout:
		key = msgTimeout
	}
	return Localize(tag, key)
}
