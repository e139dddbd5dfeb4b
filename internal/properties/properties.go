package properties

import (
	"os"
	"path/filepath"
	"strconv"
)

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

// DataPath joins elem onto <ROOT_PATH>/data.
func DataPath(elem ...string) string {
	return filepath.Join(append([]string{RootPath(), "data"}, elem...)...)
}

func ModelServiceAddr() string {
	return os.Getenv("MODEL_SERVICE_ADDR")
}

func ModelHTTPURL() string {
	return os.Getenv("MODEL_HTTP_URL")
}

func ModelClientID() string {
	return os.Getenv("MODEL_CLIENT_ID")
}

func ModelClientSecret() string {
	return os.Getenv("MODEL_CLIENT_SECRET")
}

func ModelTokenURL() string {
	return os.Getenv("MODEL_TOKEN_URL")
}

// ModelChannels is the channel count the remote model was trained on, 0 when
// unset.
func ModelChannels() int {
	n, err := strconv.Atoi(os.Getenv("MODEL_CHANNELS"))
	if err != nil {
		return 0
	}
	return n
}

func HistoryDBPath() string {
	if path := os.Getenv("HISTORY_DB_PATH"); path != "" {
		return path
	}
	return DataPath("history.db")
}

type Color struct {
	R, G, B uint8
}

// ColorMap colors mask previews by class.
var ColorMap = map[uint8]Color{
	0:   {222, 203, 145},
	1:   {34, 120, 48},
	255: {0, 0, 0},
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}
func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
func DiscordWarnNotificationUrl() string {
	return os.Getenv("DISCORD_WARN_NOTIFICATION_URL")
}
