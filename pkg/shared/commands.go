package shared

// Command identifiers exposed to the editor.
const (
	CommandMenu          = "swancommands.menu"
	CommandRunAnalysis   = "swancommands.runAnalysis"
	CommandDetailedLogs  = "swancommands.detailedLogs"
	CommandSummary       = "swancommands.summary"
	CommandClearFindings = "swancommands.clearFindings"
	CommandRemoveFinding = "swancommands.removeFinding"
	CommandSetSpecPath   = "swancommands.setSpecificationPath"
	CommandOpenSettings  = "swancommands.openSettings"
	CommandDefaults      = "swancommands.defaults"
	CommandHelp          = "swancommands.help"
	CommandToggleFlag    = "swancommands.toggleFlag"

	// CommandOpenLocation is handled by the editor itself.
	CommandOpenLocation = "swan.openLocation"
)

// Commands lists the commands handled by the shell.
var Commands = []string{
	CommandMenu,
	CommandRunAnalysis,
	CommandDetailedLogs,
	CommandSummary,
	CommandClearFindings,
	CommandRemoveFinding,
	CommandSetSpecPath,
	CommandOpenSettings,
	CommandDefaults,
	CommandHelp,
	CommandToggleFlag,
}
