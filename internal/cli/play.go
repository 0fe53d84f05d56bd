// ABOUTME: play subcommand casting one or more media URLs
// ABOUTME: Loads a single item or a queue, then shows the remote
package cli

import (
	"fmt"
	"mime"
	"net/url"
	"path"

	"github.com/spf13/cobra"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

var (
	playRoute       string
	playStart       int
	playRepeat      string
	playContentType string
	playPosition    float64
)

var playCmd = &cobra.Command{
	Use:   "play <url>...",
	Short: "Cast media URLs to a receiver",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().StringVarP(&playRoute, "route", "r", "", `route id to join, "last" for the previous receiver (default: pick)`)
	playCmd.Flags().IntVar(&playStart, "start", 0, "queue index to start at")
	playCmd.Flags().StringVar(&playRepeat, "repeat", string(cast.RepeatOff), "queue repeat mode")
	playCmd.Flags().StringVar(&playContentType, "content-type", "", "content type of every URL (default: from extension)")
	playCmd.Flags().Float64Var(&playPosition, "position", 0, "start position in seconds")
	addSessionFlags(playCmd)
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cfg, true)
	if err != nil {
		return err
	}
	defer rt.close()

	route := playRoute
	if route != "" {
		route = routeArg(rt, []string{route})
	}
	session, err := rt.join(route)
	if err != nil {
		return fmt.Errorf("join failed: %w", err)
	}

	var res cast.MediaResult
	if len(args) == 1 {
		res = <-rt.caster.LoadMedia(cast.LoadRequest{
			Media:       mediaInfo(args[0], playContentType),
			Autoplay:    true,
			CurrentTime: playPosition,
		})
	} else {
		res = <-rt.caster.QueueLoad(queueRequest(args, playContentType, playStart, cast.RepeatMode(playRepeat), playPosition))
	}
	if res.Err != nil {
		<-rt.caster.SessionLeave()
		return fmt.Errorf("load failed: %w", res.Err)
	}

	return runSession(rt, session)
}

// mediaInfo describes a URL, guessing the content type from its extension
// when none is given
func mediaInfo(rawURL, contentType string) cast.MediaInfo {
	if contentType == "" {
		contentType = guessContentType(rawURL)
	}
	return cast.MediaInfo{
		ContentID:   rawURL,
		ContentType: contentType,
		StreamType:  "BUFFERED",
		Metadata:    map[string]any{"title": path.Base(urlPath(rawURL))},
	}
}

func queueRequest(urls []string, contentType string, start int, repeat cast.RepeatMode, position float64) cast.QueueLoadRequest {
	items := make([]cast.QueueItem, 0, len(urls))
	for _, u := range urls {
		m := mediaInfo(u, contentType)
		items = append(items, cast.QueueItem{Media: &m, Autoplay: true})
	}
	// The receiver starts the first item at its own start time.
	if start >= 0 && start < len(items) {
		items[start].StartTime = position
	}
	return cast.QueueLoadRequest{
		Items:        items,
		StartIndex:   start,
		RepeatMode:   repeat,
		PlayPosition: position,
	}
}

func guessContentType(rawURL string) string {
	if t := mime.TypeByExtension(path.Ext(urlPath(rawURL))); t != "" {
		return t
	}
	return "application/octet-stream"
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return u.Path
}
