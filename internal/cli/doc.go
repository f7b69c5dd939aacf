// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the muse command line.

# Commands

	muse                      interactive chat (TUI)
	muse ask [prompt]         one answer to stdout; prompt from stdin if omitted
	muse models               list installed Ollama models
	muse config init|show|path|get|set|keys
	muse history [search|show|export|delete]

# Global Flags

	--config      config file (default ~/.muse/config.toml)
	--model       model name override
	--endpoint    Ollama endpoint override
	--incognito   start in incognito mode
	--research    start in research mode
	--source      research source: scholar, arxiv, wiki
	--log-level   debug, info, warn, error
	--log-file    write logs to this file
	--no-color    disable colors

# Key Types

  - App: flag values, resolved configuration and I/O streams shared by
    every command

# Usage

	os.Exit(cli.Execute())
*/
package cli
