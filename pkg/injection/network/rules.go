package network

import (
	"fmt"
	"strings"
)

// Rule is a firewall or traffic-control command and the command that reverts it
type Rule struct {
	Do   []string
	Undo []string
}

// String renders the do command, used as the step name
func (r Rule) String() string {
	return strings.Join(r.Do, " ")
}

// FirewallEnable turns ufw on and off
func FirewallEnable() Rule {
	return Rule{
		Do:   []string{"ufw", "--force", "enable"},
		Undo: []string{"ufw", "disable"},
	}
}

// FirewallRule creates a ufw rule and deletes it on undo
func FirewallRule(rule string) Rule {
	fields := strings.Fields(rule)
	return Rule{
		Do:   append([]string{"ufw"}, fields...),
		Undo: append([]string{"ufw", "delete"}, fields...),
	}
}

// DenyPort blocks a single port
func DenyPort(port int) Rule {
	return FirewallRule(fmt.Sprintf("deny %d", port))
}

// Netem attaches a root netem qdisc to device and removes it on undo
func Netem(device string, args ...string) Rule {
	if device == "" {
		device = "eth0"
	}

	// Base command: tc qdisc add dev eth0 root netem
	do := []string{"tc", "qdisc", "add", "dev", device, "root", "netem"}
	do = append(do, args...)

	return Rule{
		Do:   do,
		Undo: []string{"tc", "qdisc", "del", "dev", device, "root"},
	}
}
