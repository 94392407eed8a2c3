package endpoints

import (
	"github.com/jackzampolin/popsci/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&MetricsEndpoint{},

		// Paper endpoints
		&InterpretEndpoint{},
		&StatusEndpoint{},
		&DownloadEndpoint{},
		&ListTasksEndpoint{},
		&DeleteTaskEndpoint{},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
	}
}

// PaperCommands returns the endpoints grouped under "paper".
func PaperCommands() []api.Endpoint {
	return []api.Endpoint{
		&InterpretEndpoint{},
		&StatusEndpoint{},
		&DownloadEndpoint{},
		&ListTasksEndpoint{},
		&DeleteTaskEndpoint{},
	}
}

// PromptCommands returns the endpoints grouped under "prompts".
func PromptCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
	}
}
