package mcpserver

// DocumentFormatContract describes the YAML document format that agents
// should follow when writing or checking documents.
const DocumentFormatContract = `# YamUI Document Format

A document is a YAML file (` + "`" + `<name>.yaml` + "`" + ` or ` + "`" + `<name>.yml` + "`" + `) describing
state, reusable components, styles and screens. Indentation is two spaces; tabs
are rejected.

## Top-level sections

` + "```" + `yaml
app:
  initial_screen: home        # OPTIONAL, defaults to the first screen
state:                        # OPTIONAL, initial string values
  count: "0"
styles:                       # OPTIONAL, named styles
  card:
    bg_color: "#1E1E2E"
    radius: 16
components:                   # OPTIONAL, reusable widget groups
  badge:
    props:
      - caption
    widgets:
      - type: label
        text: "{{caption}}"
screens:                      # REQUIRED unless sensor_templates is present
  home:
    title: Home
    on_load: set(loaded, yes)
    widgets:
      - type: label
        id: count_label
        text: "Count: {{count}}"
      - type: button
        id: inc
        text: Add
        on_click: set(count, {{count}} + 1)
      - type: badge
        caption: "{{count}} clicks"
` + "```" + `

## Rules

1. **A document needs ` + "`" + `screens` + "`" + ` or ` + "`" + `sensor_templates` + "`" + `.** Anything else is
   rejected with a missing-section error.
2. **Widgets** are ` + "`" + `label` + "`" + `, ` + "`" + `button` + "`" + `, ` + "`" + `img` + "`" + `, ` + "`" + `spacer` + "`" + `, ` + "`" + `row` + "`" + `,
   ` + "`" + `column` + "`" + `, ` + "`" + `panel` + "`" + `, or the name of a declared component. Unknown types are
   skipped with a warning.
3. **Templates** use ` + "`" + `{{key}}` + "`" + `. Inside a component a declared prop shadows a
   state key of the same name.
4. **Actions** are one ` + "`" + `name(arg, ...)` + "`" + ` or a YAML sequence of them: ` + "`" + `set(key, value)` + "`" + `,
   ` + "`" + `goto(screen)` + "`" + `, ` + "`" + `push(screen)` + "`" + `, ` + "`" + `pop()` + "`" + `, ` + "`" + `modal(component)` + "`" + `,
   ` + "`" + `close_modal()` + "`" + `, ` + "`" + `call(native, args...)` + "`" + `, ` + "`" + `emit(event, args...)` + "`" + `.
   Arguments may be arithmetic over templates: ` + "`" + `{{count}} * 2` + "`" + `.
5. **Events** are ` + "`" + `on_click` + "`" + `, ` + "`" + `on_press` + "`" + `, ` + "`" + `on_release` + "`" + `, ` + "`" + `on_change` + "`" + `,
   ` + "`" + `on_focus` + "`" + `, ` + "`" + `on_blur` + "`" + `. Change events can read ` + "`" + `{{value}}` + "`" + ` and
   ` + "`" + `{{checked}}` + "`" + `.
6. **Images** take ` + "`" + `src` + "`" + ` or ` + "`" + `symbol:<name>` + "`" + ` for a built-in glyph.
7. **Layout** on screens, rows, columns and panels is a ` + "`" + `layout` + "`" + ` mapping with
   ` + "`" + `type` + "`" + ` (column or row), ` + "`" + `gap` + "`" + `, ` + "`" + `align` + "`" + `, ` + "`" + `justify` + "`" + `, ` + "`" + `padding` + "`" + `.
8. **Styles** accept ` + "`" + `bg_color` + "`" + `, ` + "`" + `text_color` + "`" + `, ` + "`" + `accent_color` + "`" + `,
   ` + "`" + `border_color` + "`" + ` (as ` + "`" + `#RRGGBB` + "`" + `), ` + "`" + `radius` + "`" + `, ` + "`" + `padding` + "`" + `, ` + "`" + `padding_x` + "`" + `,
   ` + "`" + `padding_y` + "`" + `, ` + "`" + `font` + "`" + `, ` + "`" + `text_align` + "`" + `, ` + "`" + `shadow` + "`" + `.
9. **Components** must not reference themselves, directly or through other
   components.

Use the check_document tool to validate content before writing it.
`
