package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
)

// ParseTaskList decodes a stored tasks payload into a task list. Historical
// payloads are loosely typed: ratings appear as numbers, floats or numeric
// strings, booleans sometimes as "true"/"false" strings, and some rows were
// double JSON-encoded by an old client. All of those decode successfully.
//
// A payload that is empty or JSON null decodes to an empty list. A payload
// that is not a list at all returns an error so the integrity auditor can
// count it; read paths treat that error as "empty list", never as a failure.
func ParseTaskList(raw []byte) ([]TaskResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []TaskResult{}, nil
	}

	// Old mobile clients stringified the list twice. Unwrap one level.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("malformed tasks payload: %w", err)
		}
		return ParseTaskList([]byte(inner))
	}

	var items []map[string]interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("malformed tasks payload: %w", err)
	}

	tasks := make([]TaskResult, 0, len(items))
	for _, item := range items {
		task := TaskResult{
			TemplateID:  cast.ToInt(item["templateId"]),
			Completed:   cast.ToBool(item["completed"]),
			Rating:      clampRating(cast.ToInt(item["rating"])),
			ItemComment: cast.ToString(item["itemComment"]),
		}
		if subs, ok := item["subTaskRatings"].([]interface{}); ok {
			for _, sub := range subs {
				entry, ok := sub.(map[string]interface{})
				if !ok {
					continue
				}
				task.SubTaskRatings = append(task.SubTaskRatings, SubTaskRating{
					Label:  cast.ToString(entry["label"]),
					Rating: clampRating(cast.ToInt(entry["rating"])),
				})
			}
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// ParseCategoryComments decodes a stored category-comments payload. Values
// are coerced to strings; anything that is not an object decodes to nil.
func ParseCategoryComments(raw []byte) map[string]string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil
		}
		return ParseCategoryComments([]byte(inner))
	}

	var entries map[string]interface{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	comments := make(map[string]string, len(entries))
	for category, comment := range entries {
		comments[category] = cast.ToString(comment)
	}
	return comments
}

func clampRating(rating int) int {
	if rating < 0 {
		return 0
	}
	if rating > 5 {
		return 5
	}
	return rating
}
