package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/clean-dependency-project/astudios/internal/catalog"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

// formatAge renders a duration the way update reports cache age.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "less than a minute"
	case d < 2*time.Minute:
		return "1 minute"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 2*time.Hour:
		return "1 hour"
	case d < 48*time.Hour:
		return fmt.Sprintf("%d hours", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days", int(d.Hours()/24))
	}
}

// channelLabel renders a channel for humans. Unknown channels are
// title-cased and an empty one reads as Release.
func channelLabel(ch catalog.Channel) string {
	switch ch {
	case catalog.ChannelRelease, catalog.ChannelBeta, catalog.ChannelCanary, catalog.ChannelRC, catalog.ChannelPatch:
		return string(ch)
	case "":
		return string(catalog.ChannelRelease)
	default:
		return cases.Title(language.English).String(strings.ToLower(string(ch)))
	}
}

// osDownloads are the per-OS availability lines of list, in print order.
var osDownloads = []struct {
	label  string
	marker string
}{
	{"macOS", "mac"},
	{"Windows", "windows"},
	{"Linux", "linux"},
}
