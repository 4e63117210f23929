package commands

import (
	"context"
	"fmt"
	"net/netip"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/snapshot"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

// MaxMessageLen is the longest reply a chat platform accepts in one message.
const MaxMessageLen = 2000

const (
	helpText = `Teeworlds Discord Bot by jxsl13. Have fun.
Commands:
**!p[layer]** <player> -  Check whether a player is currently online
**!o[nline]** <gametype> - Find all online servers with a specific gametype
**!o[nline]p[layers]** <gametype> - Show a list of servers and players playing a specific gametype.
**!vpn** <IP> - check if a given IP is actually a player connected via VPN(this feature doesn't work on servers, PM the bot.).
**!ip_filter** <text> - given a random text, the bot will return all unique IPs of that text.`

	privateOnlyText = "This feature is only available via PM. Please send a private message."
	InvalidIPsText  = "Invalid IP address(es) provided."
)

var ipv4Pattern = regexp.MustCompile(`(?:(?:1\d\d|2[0-5][0-5]|2[0-4]\d|0?[1-9]\d|0?0?\d)\.){3}(?:1\d\d|2[0-5][0-5]|2[0-4]\d|0?[1-9]\d|0?0?\d)`)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"~", `\~`,
	"|", `\|`,
	">", `\>`,
)

// Message is one inbound chat message. Private is true for direct messages.
type Message struct {
	Text    string `json:"text"`
	Private bool   `json:"private"`
}

// Classifier is the part of vpn.Chain used by the handler.
type Classifier interface {
	ClassifyBatch(ctx context.Context, ips []string) []vpn.Result
}

type Handler struct {
	store      *snapshot.Store
	classifier Classifier
}

func NewHandler(store *snapshot.Store, classifier Classifier) *Handler {
	return &Handler{store: store, classifier: classifier}
}

// Handle returns the replies for msg in send order. Unknown input yields none.
func (h *Handler) Handle(ctx context.Context, msg Message) []string {
	text := msg.Text
	command, arg, hasArg := strings.Cut(text, " ")

	switch {
	case strings.HasPrefix(text, "!help"):
		return []string{helpText}
	case !hasArg:
		return nil
	}

	switch command {
	case "!p", "!player":
		return h.findPlayer(arg)
	case "!o", "!online":
		return h.onlineServers(arg)
	case "!op", "!onlineplayers":
		return h.onlinePlayers(arg)
	case "!vpn":
		if !msg.Private {
			return []string{privateOnlyText}
		}
		return h.checkVPN(ctx, strings.Split(text, " "))
	case "!ip_filter":
		if !msg.Private {
			return []string{privateOnlyText}
		}
		return []string{FilterIPs(arg)}
	default:
		return nil
	}
}

func (h *Handler) findPlayer(query string) []string {
	snap := h.store.Read()
	player, ok := snapshot.FindPlayer(query, snap.Players)
	if !ok {
		return []string{fmt.Sprintf("No such player found: '%s'", query)}
	}

	server, _ := snap.Server(player.Address)
	return []string{fmt.Sprintf("'%s' is currently playing on '%s'", Escape(player.Name), Escape(server.Name))}
}

func (h *Handler) onlineServers(gametype string) []string {
	servers := snapshot.OnlineServers(gametype, h.store.Read())
	if len(servers) == 0 {
		return []string{noServersText(gametype)}
	}

	lines := make([]string, 0, len(servers))
	for _, server := range servers {
		lines = append(lines, "\n"+serverHeadline(server))
	}
	return Batch(lines, MaxMessageLen)
}

func (h *Handler) onlinePlayers(gametype string) []string {
	servers := snapshot.OnlineServers(gametype, h.store.Read())
	if len(servers) == 0 {
		return []string{noServersText(gametype)}
	}

	replies := make([]string, 0, len(servers))
	for _, server := range servers {
		var b strings.Builder
		b.WriteString("\n" + serverHeadline(server))
		b.WriteString("\n```")
		for _, player := range server.Players {
			b.WriteString(playerRow(player))
		}
		b.WriteString("```\n")
		replies = append(replies, b.String())
	}
	return replies
}

func (h *Handler) checkVPN(ctx context.Context, tokens []string) []string {
	valid := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, err := netip.ParseAddr(token); err == nil {
			valid = append(valid, token)
		}
	}
	if len(valid) == 0 {
		return []string{InvalidIPsText}
	}

	results := h.classifier.ClassifyBatch(ctx, valid)
	replies := make([]string, 0, len(results))
	for _, res := range results {
		replies = append(replies, FormatResult(res))
	}
	log.Debug("VPN check answered", "requested", len(valid), "answered", len(results))
	return replies
}

// FormatResult renders one classification as a chat line.
func FormatResult(res vpn.Result) string {
	switch res.Outcome {
	case vpn.OutcomeVPN:
		return fmt.Sprintf("The IP '**%s**' is a VPN", res.IP)
	case vpn.OutcomeClean:
		return fmt.Sprintf("The IP '%s' is not a VPN", res.IP)
	case vpn.OutcomeReserved:
		return fmt.Sprintf("The IP '%s' is part of a reserved IP range which should not be accessible to humans.", res.IP)
	case vpn.OutcomeInvalid:
		return fmt.Sprintf("The IP '%s' is not a valid IP address.", Escape(res.IP))
	default:
		return fmt.Sprintf("Could not retrieve any data for IP '%s', please try this command another time.", res.IP)
	}
}

// FilterIPs extracts the unique IPv4 literals of text and returns them as a
// ready to send !vpn command.
func FilterIPs(text string) string {
	matches := ipv4Pattern.FindAllString(text, -1)
	slices.Sort(matches)
	matches = slices.Compact(matches)

	return strings.Join(append([]string{"!vpn"}, matches...), " ")
}

// Batch joins parts into messages no longer than limit. A single part that
// exceeds limit is sent on its own.
func Batch(parts []string, limit int) []string {
	var (
		out     []string
		current string
	)
	for _, part := range parts {
		if len(current)+len(part) > limit && current != "" {
			out = append(out, current)
			current = part
			continue
		}
		current += part
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// Escape masks chat markdown control characters.
func Escape(text string) string {
	return markdownEscaper.Replace(text)
}

func serverHeadline(server domain.ServerInfo) string {
	return fmt.Sprintf("**%s** (%d Players)", Escape(server.Name), server.PlayerCount)
}

func playerRow(player domain.Player) string {
	kind := ""
	if player.IsBot() {
		kind = "(bot)"
	}
	return fmt.Sprintf("\n%-16s      %12s %s", player.Name, player.Clan, kind)
}

func noServersText(gametype string) string {
	return fmt.Sprintf("No online servers with gametype '%s' found!", gametype)
}
