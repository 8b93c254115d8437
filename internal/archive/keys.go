package archive

import "strings"

// SafeTitle strips the characters `:`, `'` and `"` from a title. Nothing
// else is altered. Downstream consumers of the archive build lookup keys
// from this exact form, so the rule must not drift.
func SafeTitle(title string) string {
	r := strings.NewReplacer(":", "", "'", "", `"`, "")
	return r.Replace(title)
}

// TranscriptKey builds the transcript_index.json key for a video.
func TranscriptKey(title, videoID string) string {
	return SafeTitle(title) + "_" + videoID
}

// KeywordAliases returns the three key aliases under which a video's
// keyword list is stored in keywords.json. Historical lookups used
// inconsistent orderings, so all three must map to the identical list.
func KeywordAliases(title, videoID string) []string {
	safe := SafeTitle(title)
	return []string{
		safe + "_" + videoID,
		videoID + "_" + safe,
		safe + "_" + videoID + "_en_auto",
	}
}

// SidecarBase is the filename stem for per-video sidecar files
// (<base>_transcript.txt, <base>_summary.txt, <base>_metadata.json).
func SidecarBase(title, videoID string) string {
	return SafeTitle(title) + "_" + videoID
}
