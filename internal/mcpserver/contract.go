package mcpserver

// FormatContract describes the two interchange formats for annotated code
// that LLM consumers should follow when reading or writing annotations.
const FormatContract = `# Marginalia Annotated Format Contract

Annotations are typed remarks attached to one line or to a contiguous block
of lines of a source file. Line numbers are 1-based.

## Annotation types

| type        | inline prefix |
|-------------|---------------|
| observation | OBS           |
| question    | QUES          |
| metaphor    | META          |
| pattern     | PATT          |
| context     | CTX           |
| critique    | CRIT          |

## Markdown export

` + "````" + `markdown
---
title: prog.mad
language: mad
annotated: true
annotations:
  - line: 3
    type: question
    content: "why: print here?"
    addedBy: JM
  - line: 1
    endLine: 4
    type: pattern
    content: whole program
---

` + "```" + `mad
R PROGRAM
      X = 1
        PRINT X
      END OF PROGRAM
` + "```" + `
` + "````" + `

## Rules

1. **The header comes first.** The document starts with ` + "`" + `---` + "`" + ` and the header
   ends at the next line that is exactly ` + "`" + `---` + "`" + `.
2. **` + "`" + `annotated: true` + "`" + ` is mandatory.** Markdown without it is rejected.
3. **Fields.** ` + "`" + `title` + "`" + ` is the file name used on import and ` + "`" + `language` + "`" + ` the
   fence language. Each item needs ` + "`" + `line` + "`" + `, ` + "`" + `type` + "`" + ` and ` + "`" + `content` + "`" + `; ` + "`" + `endLine` + "`" + `
   marks a block and ` + "`" + `addedBy` + "`" + ` holds author initials.
4. **Unknown types** are imported as ` + "`" + `observation` + "`" + `.
5. **Quoted values** use double quotes when they contain ` + "`" + `:` + "`" + ` ` + "`" + `#` + "`" + ` or quotes, with ` + "`" + `\"` + "`" + `, ` + "`" + `\\` + "`" + ` and ` + "`" + `\n` + "`" + ` escapes.
6. **The code** is the content of the first fenced block after the header.
7. Ids, timestamps and replies are not part of the export; imports get new ids.

## Inline markers

Each annotation is a comment line placed directly below the line it annotates:

` + "```" + `
      X = 1
		//An:OBS: assignment of the loop counter
        PRINT X
		//An:QUES[L3-4]: why print before the end?
` + "```" + `

- The marker is ` + "`" + `//An:PREFIX: content` + "`" + `, indented with two tabs.
- Block annotations carry their line range: ` + "`" + `//An:PATT[L1-4]: ...` + "`" + `.
- Newlines and backslashes in content are written as ` + "`" + `\n` + "`" + ` and ` + "`" + `\\` + "`" + `.
- Leading spaces and tabs of content are written as ` + "`" + `\s` + "`" + ` and ` + "`" + `\t` + "`" + `.
- A marker belongs to the nearest code line above it; markers before the first
  code line are ignored.
`
