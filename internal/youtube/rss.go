package youtube

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

const feedURLFormat = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"

// RSSLister reads a channel's upload feed. The feed only carries the most
// recent uploads, so it cannot replace a full listing; it serves as a
// cheap precheck to decide whether a quota-expensive full listing is
// worth running at all.
type RSSLister struct {
	parser *gofeed.Parser
}

// NewRSSLister creates an RSS lister.
func NewRSSLister() *RSSLister {
	return &RSSLister{parser: gofeed.NewParser()}
}

// LatestVideoIDs returns the video ids currently present in the channel's
// upload feed, in feed order (newest first).
func (r *RSSLister) LatestVideoIDs(ctx context.Context, channelID string) ([]string, error) {
	feed, err := r.parser.ParseURLWithContext(fmt.Sprintf(feedURLFormat, channelID), ctx)
	if err != nil {
		return nil, &SourceError{Op: "rss", ID: channelID, Err: err}
	}
	return feedVideoIDs(feed), nil
}

func feedVideoIDs(feed *gofeed.Feed) []string {
	ids := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if id := videoIDFromItem(item); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// videoIDFromItem extracts the video id from a feed entry. YouTube feeds
// carry it both as the entry id ("yt:video:<id>") and in the yt extension.
func videoIDFromItem(item *gofeed.Item) string {
	if id, ok := strings.CutPrefix(item.GUID, "yt:video:"); ok {
		return id
	}
	if yt, ok := item.Extensions["yt"]; ok {
		if vals, ok := yt["videoId"]; ok && len(vals) > 0 {
			return vals[0].Value
		}
	}
	return ""
}
