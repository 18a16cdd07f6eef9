// Package services implements the external collaborators behind the
// builtin tools: Open-Meteo for forecasts, Nominatim for geocoding, a
// SQLite trail catalog and DuckDuckGo for web search. Each client
// satisfies the corresponding interface in pkg/tools; the dispatcher and
// tool executor never talk to a data source directly.
package services
