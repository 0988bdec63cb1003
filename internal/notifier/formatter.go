package notifier

import (
	"fmt"
	"html"
	"strings"

	"IceStock/internal/model"
)

// FormatWeeklySuggestion formats a generated suggestion into a Telegram message.
func FormatWeeklySuggestion(rec *model.SuggestionRecord, source string, warnings []string) string {
	var b strings.Builder

	s := rec.Suggestion
	b.WriteString(fmt.Sprintf("🍦 <b>%s</b> | semana del %s\n", html.EscapeString(rec.StoreName), s.WeekStart))
	b.WriteString(fmt.Sprintf("Estrategia: %s | Pronóstico: %s\n\n", s.Strategy, html.EscapeString(source)))

	var units, mass []model.LineItem
	for _, item := range s.Items {
		if item.Family == model.FamilyUnits {
			units = append(units, item)
		} else {
			mass = append(mass, item)
		}
	}
	if len(units) > 0 {
		b.WriteString("📦 <b>Unidades:</b>\n")
		for _, item := range units {
			b.WriteString(fmt.Sprintf("  %s: %.1f u (%.1f bultos)\n", html.EscapeString(item.Product), item.Quantity, item.Cases))
		}
	}
	if len(mass) > 0 {
		b.WriteString("⚖️ <b>Kilos:</b>\n")
		for _, item := range mass {
			b.WriteString(fmt.Sprintf("  %s: %.1f kg (%.1f cajas)\n", html.EscapeString(item.Product), item.Quantity, item.Cases))
		}
	}
	if len(s.Items) == 0 {
		b.WriteString("Sin productos configurados.\n")
	}

	if rec.Explanation != "" {
		b.WriteString(fmt.Sprintf("\n💬 %s\n", html.EscapeString(rec.Explanation)))
	}
	for _, w := range warnings {
		b.WriteString(fmt.Sprintf("\n⚠️ %s", html.EscapeString(w)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatStoreList lists the registered stores with their coordinates.
func FormatStoreList(stores []model.Store) string {
	if len(stores) == 0 {
		return "No hay tiendas registradas."
	}
	var b strings.Builder
	b.WriteString("🏪 <b>Tiendas</b>\n\n")
	for _, s := range stores {
		coords := "sin coordenadas"
		if s.Location().Complete() {
			coords = fmt.Sprintf("%.4f, %.4f", *s.Lat, *s.Lon)
		}
		b.WriteString(fmt.Sprintf("#%d %s (%s)\n", s.ID, html.EscapeString(s.Name), coords))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatHistory summarizes the most recent suggestions, newest first.
func FormatHistory(records []model.SuggestionRecord, limit int) string {
	if len(records) == 0 {
		return "Todavía no hay sugerencias."
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Historial</b>\n\n")
	for _, rec := range records {
		b.WriteString(fmt.Sprintf("%s · %s · semana %s · %s · %d productos\n",
			rec.CreatedAt.Format("2006-01-02 15:04"),
			html.EscapeString(rec.StoreName),
			rec.Suggestion.WeekStart,
			rec.Suggestion.Strategy,
			len(rec.Suggestion.Items)))
	}
	return strings.TrimRight(b.String(), "\n")
}
