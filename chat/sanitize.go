package chat

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// stripMarkup removes HTML/markup tags a pasting client may have embedded in
// a message body, keeping only the concatenated text nodes. Plain text with
// no markup passes through unchanged. Grounded on the teacher's
// textFromChatMsgBlob, which ran a chat message payload through the same
// tokenizer for the same reason: a client can hand the server formatted text
// it never asked for.
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}

	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch tok.Next() {
		case html.TextToken:
			b.Write(tok.Text())
		case html.ErrorToken:
			return b.String()
		}
	}
}

// rollDiceRgxp matches the //roll easter egg.
// ex: //roll  //roll-sides3  //roll-dice2  //roll-dice2-sides3
var rollDiceRgxp = regexp.MustCompile(`^//roll(?:-(dice|sides)([0-9]{1,3}))?(?:-(dice|sides)([0-9]{1,3}))?\s*$`)

const (
	defaultDice  = 2
	defaultSides = 6
	maxDice      = 15
	maxSides     = 999
)

// parseDiceCommand recognizes the //roll slash command and extracts its dice
// and sides arguments, defaulting to 2 six-sided dice. Bounds (dice<=15,
// sides<=999) and the regexp itself are carried over from the teacher's
// parseDiceCommand verbatim, since the easter egg is the same feature ported
// into a new transport.
func parseDiceCommand(in string) (ok bool, dice int, sides int) {
	matches := rollDiceRgxp.FindStringSubmatch(in)
	if matches == nil {
		return false, 0, 0
	}

	dice, sides = defaultDice, defaultSides
	pairs := [][2]string{{matches[1], matches[2]}, {matches[3], matches[4]}}
	seen := map[string]bool{}
	for _, p := range pairs {
		kind, val := p[0], p[1]
		if kind == "" {
			continue
		}
		if seen[kind] {
			return false, 0, 0
		}
		seen[kind] = true

		n := 0
		for _, r := range val {
			n = n*10 + int(r-'0')
		}
		switch kind {
		case "dice":
			dice = n
		case "sides":
			sides = n
		}
	}

	if dice <= 0 || dice > maxDice || sides <= 0 || sides > maxSides {
		return false, 0, 0
	}
	return true, dice, sides
}

// rollDice renders the result line for a //roll command, in the name of the
// rolling user themselves (unlike the teacher, which attributes the roll to
// a synthetic OnlineHost identity — there is no such system user here).
func rollDice(name string, dice, sides int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rolled %d %d-sided dice:", name, dice, sides)
	for i := 0; i < dice; i++ {
		fmt.Fprintf(&b, " %d", rand.IntN(sides)+1)
	}
	return b.String()
}

// applyRollEasterEgg rewrites message into its //roll result line if message
// is a recognized roll command, otherwise returns it unchanged.
func applyRollEasterEgg(sender, message string) string {
	if ok, dice, sides := parseDiceCommand(message); ok {
		return rollDice(sender, dice, sides)
	}
	return message
}
