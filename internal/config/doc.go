// Package config handles configuration loading for chaz.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	matrix:
//	  access_token: "${CHAZ_ACCESS_TOKEN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Backends
//
// Each backend entry names a configured LLM access point, either an
// OpenAI-compatible completion endpoint or an external adapter executable:
//
//	backends:
//	  - name: openai
//	    type: openai
//	    api_base: https://api.openai.com/v1
//	    api_key: "${OPENAI_API_KEY}"
//	    models: [gpt-4o, gpt-4o-mini]
//	  - name: aichat
//	    type: adapter
//	    command: aichat
//
// # Roles
//
// Roles are named system prompts with optional example exchanges. The
// chat.role field selects the default role by name; see the role package
// for the built-in set.
package config
