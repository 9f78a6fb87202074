package weather

// codeInfo is the display metadata for a WMO weather code.
type codeInfo struct {
	Description string
	Icon        string
	Color       string
}

var unknownCode = codeInfo{Description: "Unknown", Icon: "❓", Color: "#9e9e9e"}

// wmoCodes maps WMO weather interpretation codes to display metadata.
var wmoCodes = map[int]codeInfo{
	0:  {"Clear sky", "☀️", "#ffc107"},
	1:  {"Mainly clear", "🌤️", "#ffc107"},
	2:  {"Partly cloudy", "⛅", "#90a4ae"},
	3:  {"Overcast", "☁️", "#78909c"},
	45: {"Fog", "🌫️", "#b0bec5"},
	48: {"Depositing rime fog", "🌫️", "#b0bec5"},
	51: {"Light drizzle", "🌦️", "#64b5f6"},
	53: {"Moderate drizzle", "🌦️", "#42a5f5"},
	55: {"Dense drizzle", "🌧️", "#2196f3"},
	56: {"Light freezing drizzle", "🌧️", "#4fc3f7"},
	57: {"Dense freezing drizzle", "🌧️", "#29b6f6"},
	61: {"Slight rain", "🌦️", "#42a5f5"},
	63: {"Moderate rain", "🌧️", "#1e88e5"},
	65: {"Heavy rain", "🌧️", "#1565c0"},
	66: {"Light freezing rain", "🌧️", "#4fc3f7"},
	67: {"Heavy freezing rain", "🌧️", "#0288d1"},
	71: {"Slight snow fall", "🌨️", "#e0e0e0"},
	73: {"Moderate snow fall", "🌨️", "#e0e0e0"},
	75: {"Heavy snow fall", "❄️", "#eeeeee"},
	77: {"Snow grains", "🌨️", "#e0e0e0"},
	80: {"Slight rain showers", "🌦️", "#42a5f5"},
	81: {"Moderate rain showers", "🌧️", "#1e88e5"},
	82: {"Violent rain showers", "⛈️", "#0d47a1"},
	85: {"Slight snow showers", "🌨️", "#e0e0e0"},
	86: {"Heavy snow showers", "❄️", "#eeeeee"},
	95: {"Thunderstorm", "⛈️", "#7b1fa2"},
	96: {"Thunderstorm with slight hail", "⛈️", "#6a1b9a"},
	99: {"Thunderstorm with heavy hail", "⛈️", "#4a148c"},
}

// describeCode returns display metadata for code, or the "Unknown" entry.
func describeCode(code int) codeInfo {
	if info, ok := wmoCodes[code]; ok {
		return info
	}
	return unknownCode
}
