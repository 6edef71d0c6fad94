package services

import "github.com/slack-go/slack"

// SlackBlockBuilder Slack Block Kit構築のヘルパー
type SlackBlockBuilder struct {
	blocks []slack.Block
}

// NewSlackBlockBuilder 新しいビルダーを作成
func NewSlackBlockBuilder() *SlackBlockBuilder {
	return &SlackBlockBuilder{
		blocks: make([]slack.Block, 0),
	}
}

// AddSection セクションブロックを追加
func (b *SlackBlockBuilder) AddSection(text string) *SlackBlockBuilder {
	txt := slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
	b.blocks = append(b.blocks, slack.NewSectionBlock(txt, nil, nil))
	return b
}

// AddContext 補足情報のコンテキストブロックを追加
func (b *SlackBlockBuilder) AddContext(texts ...string) *SlackBlockBuilder {
	if len(texts) == 0 {
		return b
	}

	elements := make([]slack.MixedElement, 0, len(texts))
	for _, t := range texts {
		elements = append(elements, slack.NewTextBlockObject(slack.MarkdownType, t, false, false))
	}
	b.blocks = append(b.blocks, slack.NewContextBlock("", elements...))
	return b
}

// Build ブロック配列を返す
func (b *SlackBlockBuilder) Build() []slack.Block {
	return b.blocks
}
