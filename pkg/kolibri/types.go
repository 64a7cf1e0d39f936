package kolibri

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Channel - канал контента Kolibri (/api/content/channel).
type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	RootID      string `json:"root"`
	Author      string `json:"author,omitempty"`
	Available   bool   `json:"available"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Version     int    `json:"version"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// ContentNode - узел дерева контента (contentnode и contentnode_slim).
type ContentNode struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Kind        string     `json:"kind"`
	ChannelID   string     `json:"channel_id"`
	ContentID   string     `json:"content_id"`
	Parent      string     `json:"parent,omitempty"`
	Description string     `json:"description,omitempty"`
	Available   bool       `json:"available"`
	IsLeaf      bool       `json:"is_leaf,omitempty"`
	Files       []NodeFile `json:"files,omitempty"`
}

// Topic сообщает, что узел - папка.
func (n ContentNode) Topic() bool {
	return n.Kind == "topic"
}

// NodeFile - файл, прикреплённый к узлу.
type NodeFile struct {
	ID         string `json:"id"`
	StorageURL string `json:"storage_url"`
	Preset     string `json:"preset"`
	Extension  string `json:"extension"`
	FileSize   int64  `json:"file_size"`
	Lang       any    `json:"lang,omitempty"`
	Thumbnail  bool   `json:"thumbnail"`
	Available  bool   `json:"available"`
}

// ThumbnailFile возвращает первый файл-превью узла.
func (n ContentNode) ThumbnailFile() (NodeFile, bool) {
	for _, f := range n.Files {
		if f.Thumbnail {
			return f, true
		}
	}
	return NodeFile{}, false
}

// DecodeChannels разбирает список каналов.
func DecodeChannels(resp *Response) ([]Channel, error) {
	var out []Channel
	if err := decodeList(resp, &out); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	return out, nil
}

// DecodeNodes разбирает список узлов.
func DecodeNodes(resp *Response) ([]ContentNode, error) {
	var out []ContentNode
	if err := decodeList(resp, &out); err != nil {
		return nil, fmt.Errorf("decode content nodes: %w", err)
	}
	return out, nil
}

// DecodeNode разбирает один узел. Тело null даёт nil без ошибки.
func DecodeNode(resp *Response) (*ContentNode, error) {
	if isNull(resp.Body) {
		return nil, nil
	}
	var node ContentNode
	if err := resp.Decode(&node); err != nil {
		return nil, fmt.Errorf("decode content node: %w", err)
	}
	return &node, nil
}

// decodeList принимает и голый массив, и страницу {"results": [...]}.
// null даёт пустой список.
func decodeList(resp *Response, dest any) error {
	if isNull(resp.Body) {
		return nil
	}

	var probe json.RawMessage
	if err := json.Unmarshal(resp.Body, &probe); err != nil {
		return err
	}
	if len(probe) > 0 && probe[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(probe, &page); err != nil {
			return err
		}
		if isNull(page.Results) {
			return nil
		}
		return json.Unmarshal(page.Results, dest)
	}
	return json.Unmarshal(probe, dest)
}

func isNull(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
