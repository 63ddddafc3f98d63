package vsctl

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
	ovntest "github.com/ovn-org/ovsdb-frontend/pkg/testing"
	"github.com/ovn-org/ovsdb-frontend/pkg/util"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const (
	vsctlCmd   = "ovs-vsctl --timeout=10 --oneline --format=json --db=unix:/var/run/openvswitch/db.sock"
	bridgeUUID = "3b1d4bc3-e47b-4bb6-a25b-a8a1a5b3e8a7"
)

var _ = Describe("ovs-vsctl front end", func() {
	var (
		fexec *ovntest.FakeExec
		api   *OvsdbVsctl
		ctx   context.Context
	)

	BeforeEach(func() {
		fexec = ovntest.NewFakeExec()
		api = NewOvsdbVsctl(util.NewExecHelper(fexec, ""), 10, "--db=unix:/var/run/openvswitch/db.sock")
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(fexec.CalledMatchesExpected()).To(BeTrue(), fexec.ErrorDesc)
	})

	Context("executing a single command", func() {
		It("splits multi line output", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- list-br",
				Output: `br-ex\nbr-int`,
			})
			bridges, err := ovsdb.ExecuteValue(ctx, api.ListBr())
			Expect(err).NotTo(HaveOccurred())
			Expect(bridges).To(Equal([]string{"br-ex", "br-int"}))
		})

		It("returns no bridges for empty output", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{Cmd: vsctlCmd + " -- list-br"})
			bridges, err := ovsdb.ExecuteValue(ctx, api.ListBr())
			Expect(err).NotTo(HaveOccurred())
			Expect(bridges).To(BeEmpty())
		})

		It("passes options before the command verb", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{Cmd: vsctlCmd + " -- --if-exists del-br br0"})
			cmd := api.DelBr("br0", true)
			Expect(cmd.Execute(ctx)).To(Succeed())
			Expect(cmd.Result()).To(Equal(""))
		})

		It("expands map columns of db-set", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd: vsctlCmd + " -- set Interface tap0 external_ids:attached-mac=fa:16:3e:00:00:01 external_ids:iface-id=1234",
			})
			cmd := api.DbSet("Interface", "tap0", ovsdb.Col("external_ids", map[string]string{
				"iface-id":     "1234",
				"attached-mac": "fa:16:3e:00:00:01",
			}))
			Expect(cmd.Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
		})

		It("decodes the value of db-get", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- --columns=external_ids list Bridge br-int",
				Output: `{"data":[[["map",[["bridge-id","br-int"]]]]],"headings":["external_ids"]}`,
			})
			value, err := ovsdb.ExecuteValue(ctx, api.DbGet("Bridge", "br-int", "external_ids"))
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(ovsdb.Map{"bridge-id": "br-int"}))
		})

		It("decodes the rows of db-find", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- --columns=_uuid,name find Bridge datapath_type=netdev",
				Output: fmt.Sprintf(`{"data":[[["uuid","%s"],"br0"]],"headings":["_uuid","name"]}`, bridgeUUID),
			})
			rows, err := ovsdb.ExecuteValue(ctx, api.DbFind("Bridge",
				[]ovsdb.ColumnValue{ovsdb.Col("datapath_type", "netdev")}, []string{"_uuid", "name"}))
			Expect(err).NotTo(HaveOccurred())
			expected := []ovsdb.Row{{"_uuid": uuid.MustParse(bridgeUUID), "name": "br0"}}
			Expect(cmp.Diff(expected, rows)).To(BeEmpty())
		})

		It("rejects rows not matching the headings", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- list Bridge",
				Output: `{"data":[["br0", "extra"]],"headings":["name"]}`,
			})
			err := api.DbList("Bridge", nil, nil, false).Execute(ctx)
			Expect(err).To(MatchError(ovsdb.ErrMalformedResult))
		})

		It("rejects a query record that is not JSON", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- list Bridge",
				Output: "not json",
			})
			cmd := api.DbList("Bridge", nil, nil, false)
			Expect(cmd.Execute(ctx)).To(MatchError(ovsdb.ErrMalformedResult))
			Expect(cmd.Result()).To(BeNil())
		})

		It("rejects data trailing the JSON of a query record", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- list Bridge",
				Output: `{"headings":["name"],"data":[["a"]]} junk`,
			})
			err := api.DbList("Bridge", nil, nil, false).Execute(ctx)
			Expect(err).To(MatchError(ovsdb.ErrMalformedResult))
		})

		It("keeps the empty row list of db-get without rows", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- --columns=external_ids list Bridge br-int",
				Output: `{"data":[],"headings":["external_ids"]}`,
			})
			value, err := ovsdb.ExecuteValue(ctx, api.DbGet("Bridge", "br-int", "external_ids"))
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal([]ovsdb.Row{}))
		})

		It("unescapes backslashes in the output", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- br-get-external-id br0 path",
				Output: `C:\\ovs\\br0`,
			})
			path, err := ovsdb.ExecuteValue(ctx, api.BrGetExternalID("br0", "path"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(`C:\ovs\br0`))
		})

		It("reports an existing bridge", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- list Bridge br-int",
				Output: `{"data":[["br-int"]],"headings":["name"]}`,
			})
			exists, err := ovsdb.ExecuteValue(ctx, api.BrExists("br-int"))
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})

		It("reports a missing bridge without failing even when errors are checked", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- list Bridge br-foo",
				Stderr: "ovs-vsctl: no row \"br-foo\" in table Bridge",
				Err:    fmt.Errorf("exit status 1"),
			})
			exists, err := ovsdb.ExecuteValue(ctx, api.BrExists("br-foo"), ovsdb.CheckError(true))
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		It("chains the datapath type of a new bridge", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd: vsctlCmd + " -- --may-exist add-br br0 -- set Bridge br0 datapath_type=netdev",
			})
			Expect(api.AddBr("br0", true, "netdev").Execute(ctx)).To(Succeed())
		})
	})

	Context("committing a transaction", func() {
		It("runs every command in one invocation and returns results in order", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd: vsctlCmd + " -- --may-exist add-br br0 -- set Bridge br0 datapath_type=netdev" +
					" -- create Port name=p0 -- list-ports br0",
				Output: "\n\n" + bridgeUUID + "\n" + `p0\nbr0`,
			})
			addBr := api.AddBr("br0", true, "netdev")
			create := api.DbCreate("Port", ovsdb.Col("name", "p0"))
			listPorts := api.ListPorts("br0")

			txn := api.Transaction(ovsdb.CheckError(true))
			Expect(txn.Add(addBr, create, listPorts)).To(Succeed())
			results, err := txn.Commit(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(Equal([]interface{}{"", bridgeUUID, []string{"p0", "br0"}}))
			Expect(create.Value()).To(Equal(bridgeUUID))
		})

		It("pads the records of trailing commands without output", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- create Port name=p0 -- add-port br0 p0",
				Output: bridgeUUID,
			})
			create := api.DbCreate("Port", ovsdb.Col("name", "p0"))
			addPort := api.AddPort("br0", "p0", false)
			results, err := ovsdb.WithTransaction(ctx, api, func(txn ovsdb.Transaction) error {
				return txn.Add(create, addPort)
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(Equal([]interface{}{bridgeUUID, ""}))
		})

		It("rejects more output lines than commands", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- del-controller br0",
				Output: "a\nb",
			})
			err := api.DelController("br0").Execute(ctx)
			Expect(err).To(MatchError(ovsdb.ErrMalformedResult))
		})

		It("leaves results unset on invocation failure by default", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd: vsctlCmd + " -- add-port br0 p0",
				Err: fmt.Errorf("exit status 1"),
			})
			addPort := api.AddPort("br0", "p0", false)
			txn := api.Transaction()
			Expect(txn.Add(addPort)).To(Succeed())
			results, err := txn.Commit(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeNil())
			Expect(addPort.Result()).To(BeNil())
		})

		It("returns invocation failures when errors are checked", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{
				Cmd:    vsctlCmd + " -- add-port br0 p0",
				Stderr: "ovs-vsctl: no bridge named br0",
				Err:    fmt.Errorf("exit status 1"),
			})
			err := api.AddPort("br0", "p0", false).Execute(ctx, ovsdb.CheckError(true))
			Expect(err).To(MatchError(ovsdb.ErrInvocationFailure))
		})

		It("can only be committed once", func() {
			fexec.AddFakeCmd(&ovntest.ExpectedCmd{Cmd: vsctlCmd + " -- del-br br0"})
			txn := api.Transaction()
			Expect(txn.Add(api.DelBr("br0", false))).To(Succeed())
			_, err := txn.Commit(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, err = txn.Commit(ctx)
			Expect(err).To(Equal(ovsdb.ErrTransactionCommitted))
			Expect(txn.Add(api.DelBr("br1", false))).To(Equal(ovsdb.ErrTransactionCommitted))
		})

		It("rejects commands of another tool", func() {
			nbctl := NewRunner(util.NewExecHelper(fexec, ""), "ovn-nbctl", 10)
			txn := api.Transaction()
			err := txn.Add(NewCommand(nbctl, "ls-add", nil, []string{"sw0"}))
			Expect(err).To(MatchError(ovsdb.ErrUnsupportedOperation))
		})
	})

	It("runs through the root helper", func() {
		api = NewOvsdbVsctl(util.NewExecHelper(fexec, "sudo -n"), 5)
		fexec.AddFakeCmd(&ovntest.ExpectedCmd{
			Cmd: "sudo -n ovs-vsctl --timeout=5 --oneline --format=json -- set-manager ptcp:6640:127.0.0.1",
		})
		Expect(api.SetManager("ptcp:6640:127.0.0.1").Execute(ctx, ovsdb.CheckError(true))).To(Succeed())
	})
})
