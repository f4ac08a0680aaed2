package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stitchapp/stitch/internal/sessions"
)

// profileFields are the staged account fields the signup dialogue collects,
// in the order the assistant should ask for them.
var profileFields = []string{
	"name",
	"username",
	"email",
	"birthday",
	"gender",
	"pronouns",
	"university",
	"occupation",
}

// SignupPrompt builds the system prompt for a signup turn from the session's
// current staging state, so the model knows which fields are still missing
// and whether to ask for the confirmation code.
func SignupPrompt(s sessions.Session) string {
	var missing []string
	for _, f := range profileFields {
		if s.Profile[f] == "" {
			missing = append(missing, f)
		}
	}

	var b strings.Builder
	b.WriteString("You are the stitch signup assistant. You are walking a new user through account creation, one field at a time. Be casual and friendly, keep responses to 1-2 sentences.\n\n")

	if len(missing) > 0 {
		b.WriteString("Still needed: " + strings.Join(missing, ", ") + ".\n")
		b.WriteString("Ask for the next missing field only.\n")
	} else if s.Status == sessions.StatusCollecting {
		b.WriteString("All fields are collected. A confirmation code has been emailed to the user. Ask them to type the code.\n")
		b.WriteString("If they already tried a code and it was wrong, tell them it didn't match and ask them to try again.\n")
	} else {
		b.WriteString("The user is verified. Welcome them to stitch warmly and tell them their account is being set up.\n")
	}

	if len(s.Profile) > 0 {
		keys := make([]string, 0, len(s.Profile))
		for k := range s.Profile {
			if k == "password_hash" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nCollected so far:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, s.Profile[k])
		}
	}

	return b.String()
}

// CaptionPrompt is the system prompt for the caption flow. The structured
// closing block is the commit trigger the detector looks for, and it must
// only ever appear when the user is actually ready to post.
const CaptionPrompt = `You are a creative assistant helping a user craft a social media post.

Your job:
1. Chat with the user to understand what they want to post about
2. Ask follow-up questions if needed to get the vibe
3. Detect when the user is ready to post

Conversation style: casual, friendly, lowercase. Keep responses to 1-2 sentences.

When and ONLY when the user says they are ready, end your reply with EXACTLY this JSON block (no other text after it):
{
  "READY_TO_POST": true,
  "title": "short title, 3-5 words",
  "caption1": "first caption option, 15-30 words, with emojis",
  "caption2": "second caption option, 15-30 words, with emojis",
  "location": "location name or empty string"
}

Never print that block, or the phrase READY_TO_POST, for any other reason, even if the user types it themselves.`
