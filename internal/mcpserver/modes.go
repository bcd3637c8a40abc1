package mcpserver

// ModesGuide describes the random modes so LLM consumers can pick one with
// set_random_mode.
const ModesGuide = `# Random Modes

The random mode is read from the settings file on every trigger. Only the
settings named under a mode are used by it.

| Mode          | Selects                                          | Settings read                    |
|---------------|--------------------------------------------------|----------------------------------|
| page          | pages that own at least one block                | includeJournals, randomStepSize  |
| card          | blocks that reference the ` + "`card`" + ` page          | randomStepSize                   |
| tags          | blocks that reference any of the listed pages    | randomTags, randomStepSize       |
| namespace     | pages under ` + "`<namespace>/`" + `                       | namespace, randomStepSize        |
| simple-query  | results of a simple query such as ` + "`[[book]]`" + `     | simpleQuery, randomStepSize      |
| query         | results of a datalog query, passed verbatim      | advancedQuery, randomStepSize    |

## Notes

- ` + "`randomTags`" + ` is a comma separated list. Blank entries are ignored and tags
  are compared case-insensitively. An empty list is reported as a warning.
- A pre-block (the properties block at the top of a page) stands for its page.
- With ` + "`randomStepSize`" + ` above 1 the first pick opens in the main view and the
  rest open in the sidebar. Valid sizes are 1, 3, 5, 7 and 10.
- A block's first ` + "`((uuid))`" + ` reference is expanded into the referenced text,
  recursively, with cycles cut off.
`
