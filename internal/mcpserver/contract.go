package mcpserver

import "strings"

// layoutContract is rendered with the configured image extension.
const layoutContract = `# imgbed Gallery Layout Contract

The gallery is a plain directory tree. Other programs read it directly, so the
layout is a public interface.

## Structure

` + "```" + `text
<root>/
  <category>/
    1{ext}
    2{ext}
    3{ext}
` + "```" + `

## Rules

1. **Categories** are the immediate sub-folders of the root. Names are a single
   path segment: no slashes, not ` + "`" + `.` + "`" + ` or ` + "`" + `..` + "`" + `, no leading dot, no surrounding spaces.
2. **Images** are named by their position: ` + "`" + `1{ext}` + "`" + `, ` + "`" + `2{ext}` + "`" + `, ... with no gaps
   and no leading zeros. Order is numeric (` + "`" + `10{ext}` + "`" + ` follows ` + "`" + `9{ext}` + "`" + `).
3. **Adding** an image always appends: it becomes number N+1. Every input
   (png, jpeg, gif, bmp, tiff, webp) is re-encoded losslessly to ` + "`" + `{ext}` + "`" + `.
4. **Deleting** image k renames every later image down by one. Names are
   therefore not stable identifiers; list the category again after a delete.
5. **Foreign files** with the same extension but a non-numeric name (for
   example ` + "`" + `cover{ext}` + "`" + `) are listed after the numbered images and never renamed.
6. **No other files** are managed. The gallery keeps no index or metadata file.

## Tools

- ` + "`" + `list_categories` + "`" + ` / ` + "`" + `create_category` + "`" + ` manage folders.
- ` + "`" + `add_image` + "`" + ` takes an http(s) URL or a ` + "`" + `data:image/...;base64,` + "`" + ` URI.
- ` + "`" + `renumber_category` + "`" + ` repairs gaps left by external edits.
`

// LayoutContract describes the on-disk layout for images stored as ext.
func LayoutContract(ext string) string {
	return strings.ReplaceAll(layoutContract, "{ext}", ext)
}
