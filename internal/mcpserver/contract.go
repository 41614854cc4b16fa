package mcpserver

// NoteFormatURI addresses the note format resource.
const NoteFormatURI = "inkwell://note-format"

// NoteFormatContract describes how Inkwell stores notes on disk, for
// consumers that read the storage folder directly.
const NoteFormatContract = `# Inkwell Note Format

Each note is one UTF-8 file named ` + "`<id>.md`" + ` directly inside the storage
folder. Sub-folders and files starting with a dot are ignored.

## Structure

` + "```" + `
---
title: Weekly standup
createdAt: 2025-01-20T09:30:00.123456789Z
updatedAt: 2025-01-20T10:02:11.5Z
---

Body text, stored exactly as written.
` + "```" + `

## Rules

1. The header starts on the very first line with ` + "`---`" + ` and ends at the next
   line that is exactly ` + "`---`" + `. One blank line separates it from the body.
2. Header lines are ` + "`key: value`" + `. Known keys are ` + "`title`" + `, ` + "`createdAt`" + `
   and ` + "`updatedAt`" + `; unknown keys are ignored.
3. A title that spans lines, starts with a quote or has surrounding spaces is
   written as a double-quoted string with backslash escapes.
4. Timestamps are RFC 3339 in UTC. Other common date formats are read, but
   rewritten as RFC 3339 on the next save.
5. A file without a header is a note whose whole text is the body; its title
   is empty and its timestamps come from the file's modification time.
6. The id is the file name without ` + "`.md`" + `. Ids never contain path separators
   and never start with a dot.
7. Deleting a note moves its file to ` + "`.trash/`" + ` inside the same folder.

## Tools

Prefer the note tools to writing files by hand: they stamp ` + "`updatedAt`" + `
on every change, and ` + "`delete_note`" + ` moves the file to the trash.
`
