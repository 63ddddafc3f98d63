package native

import (
	"context"
	"errors"

	"github.com/ovn-org/libovsdb/model"
	libovsdb "github.com/ovn-org/libovsdb/ovsdb"

	"github.com/ovn-org/ovsdb-frontend/pkg/nbdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovn"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/types"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const (
	sw0UUID  = "6f6b2a3c-0f6e-4a55-b6c3-5b8a1c8a9d01"
	sw1UUID  = "6f6b2a3c-0f6e-4a55-b6c3-5b8a1c8a9d02"
	lsp1UUID = "7a1d3c2b-4e5f-4a6b-8c7d-9e0f1a2b3c01"
	lsp2UUID = "7a1d3c2b-4e5f-4a6b-8c7d-9e0f1a2b3c02"
	lr0UUID  = "8b2e4d3c-5f60-4b7c-9d8e-0f1a2b3c4d01"
	lrpUUID  = "8b2e4d3c-5f60-4b7c-9d8e-0f1a2b3c4d02"
	acl1UUID = "9c3f5e4d-6071-4c8d-ae9f-102b3c4d5e01"
	acl2UUID = "9c3f5e4d-6071-4c8d-ae9f-102b3c4d5e02"
	acl3UUID = "9c3f5e4d-6071-4c8d-ae9f-102b3c4d5e03"
)

func opsOf(c *fakeClient) []string {
	var ops []string
	for _, op := range c.ops {
		ops = append(ops, op.op+" "+op.table)
	}
	return ops
}

var _ = Describe("Native OVN front end", func() {
	var (
		ctx        context.Context
		nbClient   *fakeClient
		provider   *fakeProvider
		transactor *fakeTransact
		api        *OvnNative
	)

	setup := func(rows ...model.Model) {
		nbClient = newFakeClient(rows...)
		provider.client = nbClient
	}

	BeforeEach(func() {
		ctx = context.Background()
		provider = &fakeProvider{}
		transactor = &fakeTransact{}
		api = NewOvnNative(provider)
		api.transact = transactor.transact
		setup()
	})

	Context("logical switches", func() {
		It("creates a switch and returns its uuid", func() {
			cmd := api.CreateLSwitch("neutron-net1", false, map[string]string{types.OVNNetworkNameExtIDKey: "private"})
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(opsOf(nbClient)).To(Equal([]string{"insert Logical_Switch"}))
			Expect(cmd.Result()).To(Equal(realUUID(0)))

			sw := nbClient.ops[0].model.(*nbdb.LogicalSwitch)
			Expect(sw.Name).To(Equal("neutron-net1"))
			Expect(sw.ExternalIDs).To(Equal(map[string]string{types.OVNNetworkNameExtIDKey: "private"}))
		})

		It("returns the existing switch when it may exist", func() {
			setup(&nbdb.LogicalSwitch{UUID: sw0UUID, Name: "sw0"})
			cmd := api.CreateLSwitch("sw0", true, nil)
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(nbClient.ops).To(BeEmpty())
			Expect(cmd.Result()).To(Equal(sw0UUID))
		})

		It("sets an external id keeping the others", func() {
			setup(&nbdb.LogicalSwitch{UUID: sw0UUID, Name: "sw0", ExternalIDs: map[string]string{"a": "1"}})
			Expect(api.SetLSwitchExtID("sw0", "b", "2").Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(opsOf(nbClient)).To(Equal([]string{"update Logical_Switch"}))
			sw := nbClient.ops[0].model.(*nbdb.LogicalSwitch)
			Expect(sw.ExternalIDs).To(Equal(map[string]string{"a": "1", "b": "2"}))
		})

		It("deletes a switch unless it does not exist", func() {
			setup(&nbdb.LogicalSwitch{UUID: sw0UUID, Name: "sw0"})
			cmd, err := api.DeleteLSwitch("sw0", nil, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(opsOf(nbClient)).To(Equal([]string{"delete Logical_Switch"}))
			Expect(nbClient.ops[0].uuid).To(Equal(sw0UUID))

			cmd, err = api.DeleteLSwitch("sw1", nil, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(nbClient.ops).To(HaveLen(1))

			cmd, err = api.DeleteLSwitch("sw1", nil, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(MatchError(ContainSubstring("logical switch sw1 does not exist")))
		})

		It("only deletes by name", func() {
			_, err := api.DeleteLSwitch("", &ovn.ExternalID{Key: types.OVNNetworkNameExtIDKey, Value: "private"}, true)
			Expect(err).To(MatchError(ovsdb.ErrUnsupportedOperation))
			_, err = api.DeleteLPort("", "sw0", &ovn.ExternalID{Key: types.OVNPortNameExtIDKey, Value: "p1"}, true)
			Expect(err).To(MatchError(ovsdb.ErrUnsupportedOperation))
		})
	})

	Context("logical ports", func() {
		It("creates a switch and its port in one transaction", func() {
			createSwitch := api.CreateLSwitch("sw0", false, nil)
			createPort := api.CreateLPort("p1", "sw0", false, ovn.LPortColumns{
				Addresses: []string{"fa:16:3e:00:00:01 10.0.0.2"},
			})
			results, err := ovsdb.WithTransaction(ctx, api, func(txn ovsdb.Transaction) error {
				return txn.Add(createSwitch, createPort)
			}, ovsdb.CheckError(true))
			Expect(err).NotTo(HaveOccurred())
			Expect(opsOf(nbClient)).To(Equal([]string{
				"insert Logical_Switch",
				"insert Logical_Switch_Port",
				"mutate Logical_Switch",
			}))
			Expect(results).To(Equal([]interface{}{realUUID(0), realUUID(1)}))

			swOp, portOp, mutateOp := nbClient.ops[0], nbClient.ops[1], nbClient.ops[2]
			Expect(mutateOp.uuid).To(Equal(swOp.uuid))
			Expect(mutateOp.mutations).To(HaveLen(1))
			Expect(mutateOp.mutations[0].Mutator).To(Equal(libovsdb.MutateOperationInsert))
			Expect(mutateOp.mutations[0].Value).To(Equal([]string{portOp.uuid}))
			Expect(portOp.model.(*nbdb.LogicalSwitchPort).Addresses).To(Equal([]string{"fa:16:3e:00:00:01 10.0.0.2"}))
		})

		It("fails to create a port on a missing switch only when errors are checked", func() {
			cmd := api.CreateLPort("p1", "sw0", false, ovn.LPortColumns{})
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(MatchError(ContainSubstring("logical switch sw0 does not exist")))

			cmd = api.CreateLPort("p1", "sw0", false, ovn.LPortColumns{})
			Expect(cmd.Execute(ctx)).To(Succeed())
			Expect(cmd.Result()).To(BeNil())
			Expect(transactor.calls).To(Equal(0))
		})

		It("sets the up status", func() {
			setup(&nbdb.LogicalSwitchPort{UUID: lsp1UUID, Name: "p1"})
			Expect(api.SetLPortUpStatus("p1", true).Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			lsp := nbClient.ops[0].model.(*nbdb.LogicalSwitchPort)
			Expect(lsp.Up).NotTo(BeNil())
			Expect(*lsp.Up).To(BeTrue())
		})

		It("does not update a port without columns", func() {
			setup(&nbdb.LogicalSwitchPort{UUID: lsp1UUID, Name: "p1"})
			Expect(api.SetLPort("p1", false, ovn.LPortColumns{}).Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(nbClient.ops).To(BeEmpty())
		})

		It("removes a deleted port from the switch holding it", func() {
			setup(
				&nbdb.LogicalSwitch{UUID: sw0UUID, Name: "sw0", Ports: []string{lsp2UUID}},
				&nbdb.LogicalSwitch{UUID: sw1UUID, Name: "sw1", Ports: []string{lsp1UUID}},
				&nbdb.LogicalSwitchPort{UUID: lsp1UUID, Name: "p1"},
				&nbdb.LogicalSwitchPort{UUID: lsp2UUID, Name: "p2"},
			)
			cmd, err := api.DeleteLPort("p1", "", nil, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(opsOf(nbClient)).To(Equal([]string{"mutate Logical_Switch"}))
			Expect(nbClient.ops[0].uuid).To(Equal(sw1UUID))
			Expect(nbClient.ops[0].mutations[0].Mutator).To(Equal(libovsdb.MutateOperationDelete))
			Expect(nbClient.ops[0].mutations[0].Value).To(Equal([]string{lsp1UUID}))
		})

		It("turns a port into the switch side of a router port", func() {
			setup(&nbdb.LogicalSwitchPort{UUID: lsp1UUID, Name: "p1", Options: map[string]string{"foo": "bar"}})
			Expect(api.SetLRouterPortInLPort("p1", "lrp-p1").Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			lsp := nbClient.ops[0].model.(*nbdb.LogicalSwitchPort)
			Expect(lsp.Type).To(Equal(types.OVNLSwitchPortTypeRouter))
			Expect(lsp.Options).To(Equal(map[string]string{types.OVNLRouterPortOptionKey: "lrp-p1"}))
		})
	})

	Context("logical routers", func() {
		It("adds a router port and links it to the router", func() {
			setup(&nbdb.LogicalRouter{UUID: lr0UUID, Name: "r0"})
			cmd := api.AddLRouterPort("lrp-p1", "r0", "fa:16:3e:00:00:02", []string{"10.0.0.1/24"}, false)
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(opsOf(nbClient)).To(Equal([]string{"insert Logical_Router_Port", "mutate Logical_Router"}))
			Expect(cmd.Result()).To(Equal(realUUID(0)))
			lrp := nbClient.ops[0].model.(*nbdb.LogicalRouterPort)
			Expect(lrp.MAC).To(Equal("fa:16:3e:00:00:02"))
			Expect(lrp.Networks).To(Equal([]string{"10.0.0.1/24"}))
		})

		It("refuses to delete a port of another router", func() {
			setup(
				&nbdb.LogicalRouter{UUID: lr0UUID, Name: "r0"},
				&nbdb.LogicalRouterPort{UUID: lrpUUID, Name: "lrp-p1"},
			)
			err := api.DeleteLRouterPort("lrp-p1", "r0", false).Execute(ctx, ovsdb.CheckError(true))
			Expect(err).To(MatchError(ContainSubstring("is not in logical router r0")))
		})

		It("updates only the given router columns", func() {
			enabled := false
			setup(&nbdb.LogicalRouter{UUID: lr0UUID, Name: "r0"})
			Expect(api.UpdateLRouter("r0", false, ovn.LRouterColumns{Enabled: &enabled}).Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			lr := nbClient.ops[0].model.(*nbdb.LogicalRouter)
			Expect(*lr.Enabled).To(BeFalse())
			Expect(lr.ExternalIDs).To(BeNil())
		})
	})

	Context("ACLs", func() {
		It("creates an ACL tagged with its port", func() {
			setup(&nbdb.LogicalSwitch{UUID: sw0UUID, Name: "sw0"})
			cmd := api.AddACL(ovn.ACL{
				LSwitch:   "sw0",
				LPort:     "p1",
				Direction: types.OVNACLDirectionToLport,
				Priority:  1002,
				Match:     `outport == "p1" && ip4`,
				Action:    types.OVNACLActionAllowRelated,
			})
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(opsOf(nbClient)).To(Equal([]string{"insert ACL", "mutate Logical_Switch"}))
			acl := nbClient.ops[0].model.(*nbdb.ACL)
			Expect(acl.ExternalIDs).To(Equal(map[string]string{types.OVNLPortExtIDKey: "p1"}))
			Expect(acl.Priority).To(Equal(1002))
			Expect(cmd.Result()).To(Equal(realUUID(0)))
		})

		It("removes the ACLs of a port from the switch", func() {
			setup(
				&nbdb.LogicalSwitch{UUID: sw0UUID, Name: "sw0", ACLs: []string{acl1UUID, acl2UUID}},
				&nbdb.ACL{UUID: acl1UUID, ExternalIDs: map[string]string{types.OVNLPortExtIDKey: "p1"}},
				&nbdb.ACL{UUID: acl2UUID, ExternalIDs: map[string]string{types.OVNLPortExtIDKey: "p2"}},
				&nbdb.ACL{UUID: acl3UUID, ExternalIDs: map[string]string{types.OVNLPortExtIDKey: "p1"}},
			)
			cmd, err := api.DeleteACL("sw0", "p1", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(opsOf(nbClient)).To(Equal([]string{"mutate Logical_Switch"}))
			Expect(nbClient.ops[0].mutations[0].Value).To(Equal([]string{acl1UUID}))
		})

		It("does nothing when the port has no ACLs", func() {
			setup(&nbdb.LogicalSwitch{UUID: sw0UUID, Name: "sw0"})
			cmd, err := api.DeleteACL("sw0", "p1", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
			Expect(nbClient.ops).To(BeEmpty())
		})
	})

	Context("transactions", func() {
		It("can only be committed once", func() {
			txn := api.Transaction()
			Expect(txn.Add(api.CreateLSwitch("sw0", false, nil))).To(Succeed())
			_, err := txn.Commit(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = txn.Commit(ctx)
			Expect(err).To(Equal(ovsdb.ErrTransactionCommitted))
			Expect(txn.Add(api.CreateLSwitch("sw1", false, nil))).To(Equal(ovsdb.ErrTransactionCommitted))
		})

		It("rejects commands of another front end", func() {
			other := NewOvnNative(provider)
			txn := api.Transaction()
			Expect(txn.Add(other.CreateLSwitch("sw0", false, nil))).To(MatchError(ovsdb.ErrUnsupportedOperation))
		})

		It("reports connection failures only when errors are checked", func() {
			provider.err = errors.New("connection refused")
			cmd := api.CreateLSwitch("sw0", false, nil)
			Expect(cmd.Execute(ctx)).To(Succeed())
			Expect(cmd.Result()).To(BeNil())
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(MatchError(ContainSubstring("connection refused")))
		})

		It("leaves results unset when the transaction fails", func() {
			transactor.err = errors.New("constraint violation")
			cmd := api.CreateLSwitch("sw0", false, nil)
			results, err := ovsdb.WithTransaction(ctx, api, func(txn ovsdb.Transaction) error {
				return txn.Add(cmd)
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeNil())
			Expect(cmd.Result()).To(BeNil())
		})

		It("runs commands without operations in an empty transaction", func() {
			setup(&nbdb.LogicalSwitch{UUID: sw0UUID, Name: "sw0"})
			results, err := ovsdb.WithTransaction(ctx, api, func(txn ovsdb.Transaction) error {
				return txn.Add(api.CreateLSwitch("sw0", true, nil))
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(Equal([]interface{}{sw0UUID}))
			Expect(transactor.ops).To(BeEmpty())
		})
	})

	Context("reading the database", func() {
		BeforeEach(func() {
			setup(
				&nbdb.LogicalSwitch{UUID: sw0UUID, Name: "neutron-net0", Ports: []string{lsp1UUID, lsp2UUID},
					ACLs: []string{acl1UUID, acl2UUID}, ExternalIDs: map[string]string{types.OVNNetworkNameExtIDKey: "net0"}},
				&nbdb.LogicalSwitch{UUID: sw1UUID, Name: "other"},
				&nbdb.LogicalSwitchPort{UUID: lsp1UUID, Name: "p1", ExternalIDs: map[string]string{types.OVNPortNameExtIDKey: "port1"}},
				&nbdb.LogicalSwitchPort{UUID: lsp2UUID, Name: "p2"},
				&nbdb.ACL{UUID: acl1UUID, Direction: types.OVNACLDirectionToLport, Priority: 1001, Match: "ip4",
					Action: types.OVNACLActionDrop, ExternalIDs: map[string]string{types.OVNLPortExtIDKey: "p1"}},
				&nbdb.ACL{UUID: acl2UUID, Direction: types.OVNACLDirectionFromLport, Priority: 1002, Match: "ip6",
					Action: types.OVNACLActionAllowRelated, ExternalIDs: map[string]string{types.OVNLPortExtIDKey: "p1"}},
				&nbdb.ACL{UUID: acl3UUID, ExternalIDs: map[string]string{types.OVNLPortExtIDKey: "p3"}},
			)
		})

		It("returns the external ids of every switch and port", func() {
			switches, err := api.GetAllLogicalSwitchesIDs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(switches).To(Equal(map[string]map[string]string{
				"neutron-net0": {types.OVNNetworkNameExtIDKey: "net0"},
				"other":        nil,
			}))

			ports, err := api.GetAllLogicalPortsIDs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ports).To(HaveLen(2))
			Expect(ports["p1"]).To(Equal(map[string]string{types.OVNPortNameExtIDKey: "port1"}))
		})

		It("returns an empty map for a missing switch", func() {
			ids, err := api.GetLogicalSwitchIDs(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal(map[string]string{}))

			ids, err = api.GetLogicalSwitchIDs(ctx, "other")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal(map[string]string{}))
		})

		It("returns the neutron switches with their neutron ports", func() {
			switches, err := api.GetAllLogicalSwitchesWithPorts(ctx, types.OVNNetworkNameExtIDKey, types.OVNPortNameExtIDKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(switches).To(Equal([]ovn.LSwitchPorts{{Name: "neutron-net0", Ports: []string{"p1"}}}))
		})

		It("returns the ACLs of the switches by port", func() {
			acls, err := api.GetACLsForLSwitches(ctx, []string{"net0", "deleted"})
			Expect(err).NotTo(HaveOccurred())
			Expect(acls).To(HaveKey("p1"))
			Expect(acls).NotTo(HaveKey("p3"))
			Expect(acls["p1"]).To(ConsistOf(
				ovn.ACL{LSwitch: "neutron-net0", LPort: "p1", Direction: types.OVNACLDirectionToLport, Priority: 1001,
					Match: "ip4", Action: types.OVNACLActionDrop, ExternalIDs: map[string]string{types.OVNLPortExtIDKey: "p1"}},
				ovn.ACL{LSwitch: "neutron-net0", LPort: "p1", Direction: types.OVNACLDirectionFromLport, Priority: 1002,
					Match: "ip6", Action: types.OVNACLActionAllowRelated, ExternalIDs: map[string]string{types.OVNLPortExtIDKey: "p1"}},
			))
		})
	})
})
