package policy

import "github.com/xela07ax/spaceai-cmdgate/internal/domain"

// DefaultEntries — политика, с которой стартует шлюз, если не сказано иное.
func DefaultEntries() []domain.WhitelistEntry {
	safe := func(cmd, desc string) domain.WhitelistEntry {
		return domain.WhitelistEntry{Command: cmd, Level: domain.LevelSafe, Description: desc}
	}
	approval := func(cmd, desc string) domain.WhitelistEntry {
		return domain.WhitelistEntry{Command: cmd, Level: domain.LevelRequiresApproval, Description: desc}
	}
	forbidden := func(cmd, desc string) domain.WhitelistEntry {
		return domain.WhitelistEntry{Command: cmd, Level: domain.LevelForbidden, Description: desc}
	}

	return []domain.WhitelistEntry{
		safe("ls", "List directory contents"),
		safe("cat", "Print file contents"),
		safe("pwd", "Print working directory"),
		safe("echo", "Print arguments"),
		safe("grep", "Search text"),
		safe("head", "First lines of a file"),
		safe("tail", "Last lines of a file"),
		safe("wc", "Count lines, words and bytes"),
		safe("date", "Current date and time"),
		safe("whoami", "Current user"),
		{
			Command:     "uname",
			Level:       domain.LevelSafe,
			AllowedArgs: []domain.ArgMatcher{domain.MustPatternArg(`^-[amnrsv]+$`)},
			Description: "System information",
		},
		{
			Command: "git",
			Level:   domain.LevelSafe,
			AllowedArgs: []domain.ArgMatcher{
				domain.MustPatternArg(`^(status|log|diff|show|branch)$`),
				domain.MustPatternArg(`^--?[a-z-]+$`),
			},
			Description: "Read-only git subcommands",
		},

		approval("mv", "Move or rename files"),
		approval("cp", "Copy files"),
		approval("mkdir", "Create directories"),
		approval("touch", "Create or touch files"),
		approval("chmod", "Change file mode"),
		approval("find", "Walk the file tree (may -exec or -delete)"),

		forbidden("rm", "Remove files"),
		forbidden("sudo", "Privilege escalation"),
		forbidden("su", "Switch user"),
		forbidden("dd", "Raw block copy"),
		forbidden("mkfs", "Create a filesystem"),
		forbidden("shutdown", "Power off the host"),
		forbidden("reboot", "Reboot the host"),
		forbidden("chown", "Change file owner"),
	}
}
