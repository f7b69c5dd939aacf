// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the muse chat view for the terminal.

The view is a Bubble Tea model over a chat.Session. The session owns all
conversation state; this package only renders its ViewState and turns keys
into session calls.

# Key Components

## Model (model.go)

The Model struct wires the session to the Bubble Tea widgets: a textarea for
input, a viewport for the conversation, a spinner, and the help line.

## Update Loop (update.go)

Keyboard handling and the frame tick. While an answer streams, a tick every
frame interval calls Session.Tick, which reveals the next batch of text.

## View Rendering (view.go)

Sidebar of conversations, the message pane (glamour for finished answers),
the code panel, and the status line with mode badges.

# Usage

	events := chat.NewEvents(256)
	sess := muse.New(muse.Options{Notify: events.Notify, ExternalFrames: true, ...})
	m := chat.New(chat.Options{Session: sess, Events: events, Theme: styles.NewTheme()})
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
*/
package chat
