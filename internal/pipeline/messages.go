package pipeline

import (
	"fmt"

	"recipebot/internal/acquire"
)

// NoticeDownloading is sent once the request has passed the quota check.
const NoticeDownloading = "🏃 Скачиваю…"

// NoticeQueueFull answers a request the worker pool could not accept.
const NoticeQueueFull = "⏳ Сейчас много запросов, попробуй через минуту."

// Notice returns the user-facing text for a failure. Delivered requests
// have no notice.
func Notice(failure *Failure, settings Settings) string {
	if failure == nil {
		return ""
	}
	switch failure.Kind {
	case KindUnsupportedURL:
		return "Пришли ссылку на Instagram / TikTok / YouTube"
	case KindDownloadFailed:
		return downloadNotice(failure.Download)
	case KindDurationExceeded:
		return fmt.Sprintf("❌ Видео длиннее %s", minutesLabel(settings.MaxDuration.Seconds()))
	case KindTranscodeFailed:
		return "❌ Не получилось обработать видео."
	case KindVideoTooLarge:
		return "❌ Видео слишком большое для отправки в Telegram."
	case KindDeliveryFailed:
		return "❌ Не получилось отправить видео, попробуй ещё раз."
	case KindSynthesisFailed:
		return "⚠️ Видео готово, но сервис рецептов сейчас недоступен."
	case KindNoRecipeExtracted:
		return "🤷 Не удалось извлечь рецепт из этого видео."
	case KindQuotaExhausted:
		return fmt.Sprintf("🔒 Бесплатный лимит %d роликов исчерпан.\nКупить ещё: пакет 100 роликов или подписка.", settings.FreeLimit)
	case KindConcurrentBusy:
		return "⏳ Предыдущее видео ещё обрабатывается, подожди немного."
	default:
		return "❌ Что-то пошло не так, попробуй ещё раз."
	}
}

func downloadNotice(kind acquire.Kind) string {
	switch kind {
	case acquire.KindPrivate:
		return "🔒 Это приватное видео, скачать его нельзя."
	case acquire.KindRemoved:
		return "❌ Видео удалено или недоступно."
	case acquire.KindGeoBlocked:
		return "🌍 Видео недоступно в нашем регионе."
	case acquire.KindCopyrightBlocked:
		return "©️ Видео заблокировано правообладателем."
	case acquire.KindAuthRequired:
		return "🔑 Платформа требует вход, скачать видео не получилось."
	default:
		return "❌ Не смог скачать ролик."
	}
}

func minutesLabel(seconds float64) string {
	total := int(seconds)
	minutes := total / 60
	if minutes <= 0 || total%60 != 0 {
		return fmt.Sprintf("%d секунд", total)
	}
	switch {
	case minutes%10 == 1 && minutes%100 != 11:
		return fmt.Sprintf("%d минуты", minutes)
	default:
		return fmt.Sprintf("%d минут", minutes)
	}
}
