package server

import (
	"go.lsp.dev/protocol"

	"github.com/lexcodex/xmodel/framework/model"
	"github.com/lexcodex/xmodel/framework/workspace"
)

func toPosition(p model.Position) protocol.Position {
	return protocol.Position{Line: uint32(p.Line), Character: uint32(p.Character)}
}

func fromPosition(p protocol.Position) model.Position {
	return model.Position{Line: int(p.Line), Character: int(p.Character)}
}

func toRange(r model.Range) protocol.Range {
	return protocol.Range{Start: toPosition(r.Start), End: toPosition(r.End)}
}

func fromRange(r protocol.Range) model.Range {
	return model.Range{Start: fromPosition(r.Start), End: fromPosition(r.End)}
}

func toDiagnostics(diags []model.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, protocol.Diagnostic{
			Range:    toRange(d.Range),
			Severity: protocol.DiagnosticSeverity(d.Severity),
			Code:     d.Code,
			Source:   diagnosticSource,
			Message:  d.Message,
		})
	}
	return out
}

func toLocations(locs []workspace.Location) []protocol.Location {
	out := make([]protocol.Location, 0, len(locs))
	for _, loc := range locs {
		out = append(out, protocol.Location{URI: protocol.DocumentURI(loc.URI), Range: toRange(loc.Range)})
	}
	return out
}

var symbolKinds = map[model.ElementType]protocol.SymbolKind{
	model.TypeNameSpace:       protocol.SymbolKindNamespace,
	model.TypeRule:            protocol.SymbolKindFunction,
	model.TypeFunction:        protocol.SymbolKindFunction,
	model.TypeAction:          protocol.SymbolKindMethod,
	model.TypeInfoset:         protocol.SymbolKindStruct,
	model.TypeInfosetVariable: protocol.SymbolKindField,
	model.TypeType:            protocol.SymbolKindClass,
	model.TypeDecorator:       protocol.SymbolKindInterface,
	model.TypeIncludeBlock:    protocol.SymbolKindModule,
	model.TypeProfile:         protocol.SymbolKindKey,
}

func symbolKind(t model.ElementType) protocol.SymbolKind {
	if kind, ok := symbolKinds[t]; ok {
		return kind
	}
	return protocol.SymbolKindObject
}

func toDocumentSymbols(symbols []workspace.Symbol) []protocol.DocumentSymbol {
	out := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, protocol.DocumentSymbol{
			Name:           sym.Node.DisplayName(),
			Detail:         sym.Node.Type.DisplayName(),
			Kind:           symbolKind(sym.Node.Type),
			Range:          toRange(sym.Node.FullRange),
			SelectionRange: toRange(sym.Node.Range),
			Children:       toDocumentSymbols(sym.Children),
		})
	}
	return out
}

func toSymbolInformation(nodes []*model.Node) []protocol.SymbolInformation {
	out := make([]protocol.SymbolInformation, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, protocol.SymbolInformation{
			Name:          n.Name,
			Kind:          symbolKind(n.Type),
			Location:      protocol.Location{URI: protocol.DocumentURI(n.URI), Range: toRange(n.Range)},
			ContainerName: n.NameSpace,
		})
	}
	return out
}

var completionKinds = map[workspace.CompletionKind]protocol.CompletionItemKind{
	workspace.CompletionElement:   protocol.CompletionItemKindClass,
	workspace.CompletionAttribute: protocol.CompletionItemKindProperty,
	workspace.CompletionValue:     protocol.CompletionItemKindEnumMember,
	workspace.CompletionSymbol:    protocol.CompletionItemKindReference,
}

func toCompletionItems(items []workspace.CompletionItem) []protocol.CompletionItem {
	out := make([]protocol.CompletionItem, 0, len(items))
	for _, item := range items {
		out = append(out, protocol.CompletionItem{
			Label:  item.Label,
			Kind:   completionKinds[item.Kind],
			Detail: item.Detail,
		})
	}
	return out
}
