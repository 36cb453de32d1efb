package repository

import (
	"context"

	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
)

// InvoiceRepository acesso de leitura/escrita às notas fiscais.
type InvoiceRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// GetByIDs devolve as notas da seleção na ordem dos ids informados,
	// com linhas de serviço e de imposto carregadas. Ids inexistentes são
	// ignorados.
	GetByIDs(ctx context.Context, ids []string) ([]*entity.Invoice, error)
	// UpdateNFSe persiste apenas os campos NFS-e da nota (status, número,
	// código de verificação e retorno).
	UpdateNFSe(ctx context.Context, inv *entity.Invoice) error
}
